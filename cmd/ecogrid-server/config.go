package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr       string
	LogLevel   string
	StaticDir  string
	Workers    int
	Seed       uint64
	WebhookURL string
	// TickInterval is the default auto-run interval. When positive, every
	// successful start also begins auto-ticking.
	TickInterval time.Duration
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string) error
}

var resolvers = []configResolver{
	{
		flagName:    "addr",
		envVarName:  "ECOGRID_ADDR",
		defaultVal:  ":8080",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		flagName:    "log-level",
		envVarName:  "ECOGRID_LOG_LEVEL",
		defaultVal:  "info",
		description: "Log level: debug, info, warn, error",
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
	{
		flagName:    "static-dir",
		envVarName:  "ECOGRID_STATIC_DIR",
		defaultVal:  "./public",
		description: "Directory served at / (index.html)",
		setter:      func(c *ServerConfig, v string) error { c.StaticDir = v; return nil },
	},
	{
		flagName:    "workers",
		envVarName:  "ECOGRID_WORKERS",
		defaultVal:  "1",
		description: "Number of sweep workers; 1 selects the sequential sweep",
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid value for workers: %q (must be a positive integer)", v)
			}
			c.Workers = n
			return nil
		},
	},
	{
		flagName:    "seed",
		envVarName:  "ECOGRID_SEED",
		defaultVal:  "0",
		description: "Random seed; 0 derives one from the clock",
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for seed: %q", v)
			}
			c.Seed = n
			return nil
		},
	},
	{
		flagName:    "tick-interval",
		envVarName:  "ECOGRID_TICK_INTERVAL",
		defaultVal:  "0",
		description: "Auto-run interval in milliseconds; 0 disables auto-run on start",
		setter: func(c *ServerConfig, v string) error {
			ms, err := strconv.Atoi(v)
			if err != nil || ms < 0 {
				return fmt.Errorf("invalid value for tick-interval: %q (must be a non-negative integer)", v)
			}
			c.TickInterval = time.Duration(ms) * time.Millisecond
			return nil
		},
	},
	{
		flagName:    "webhook-url",
		envVarName:  "ECOGRID_WEBHOOK_URL",
		defaultVal:  "",
		description: "Optional URL that receives every tick event",
		setter:      func(c *ServerConfig, v string) error { c.WebhookURL = v; return nil },
	},
}

// loadServerConfig resolves every option from flags, then the environment,
// then the default. To add an option, add a resolver.
func loadServerConfig(fs *flag.FlagSet, args []string, getenv func(string) string) (ServerConfig, error) {
	cfg := ServerConfig{}

	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		if err := resolver.setter(&cfg, value); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}
