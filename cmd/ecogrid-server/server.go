package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/daniacca/ecogrid/internal/eco/notifiers"
)

const (
	streamNotifierID   = "websocket"
	startupWebhookID   = "startup-webhook"
	defaultRunInterval = 1000 * time.Millisecond
)

// ecoLoggerAdapter adapts the server's Logger to the eco.Logger interface
type ecoLoggerAdapter struct {
	logger *Logger
}

func (a *ecoLoggerAdapter) Debugf(format string, v ...any) {
	a.logger.Debugf(format, v...)
}

func (a *ecoLoggerAdapter) Infof(format string, v ...any) {
	a.logger.Infof(format, v...)
}

func (a *ecoLoggerAdapter) Warnf(format string, v ...any) {
	a.logger.Warnf(format, v...)
}

func (a *ecoLoggerAdapter) Errorf(format string, v ...any) {
	a.logger.Errorf(format, v...)
}

// Server is the HTTP front end of a single simulation.
type Server struct {
	env         *eco.Environment
	notifierMgr *eco.NotificationManager
	stream      *notifiers.WebSocketNotifier
	staticDir   string
	// autoRun is the interval started after each successful start; zero
	// leaves ticking to the client.
	autoRun     time.Duration
	runInterval time.Duration
	logger      *Logger
}

// NewServer builds the environment and notification plumbing from cfg.
func NewServer(cfg ServerConfig, logger *Logger) (*Server, error) {
	ecoLogger := &ecoLoggerAdapter{logger: logger}

	env := eco.NewEnvironment(eco.Options{
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
		Logger:  ecoLogger,
	})
	mgr := eco.NewNotificationManagerWithLogger(ecoLogger)
	env.SetNotificationManager(mgr)

	stream := notifiers.NewWebSocketNotifier(streamNotifierID)
	if err := mgr.RegisterNotifier(stream); err != nil {
		return nil, fmt.Errorf("registering websocket notifier: %w", err)
	}
	if cfg.WebhookURL != "" {
		hook, err := notifiers.NewWebhookNotifier(startupWebhookID, notifiers.WebhookConfig{URL: cfg.WebhookURL})
		if err == nil {
			err = mgr.RegisterNotifier(hook)
		}
		if err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("startup webhook: %w", err)
		}
	}

	runInterval := defaultRunInterval
	if cfg.TickInterval > 0 {
		runInterval = cfg.TickInterval
	}

	logger.Infof("Environment ready: size=%d workers=%d seed=%d", env.Size(), env.Workers(), env.Seed())
	return &Server{
		env:         env,
		notifierMgr: mgr,
		stream:      stream,
		staticDir:   cfg.StaticDir,
		autoRun:     cfg.TickInterval,
		runInterval: runInterval,
		logger:      logger,
	}, nil
}

// routes returns the handler serving every endpoint.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /start-simulation", s.handleStartSimulation)
	mux.HandleFunc("GET /next-iteration", s.handleNextIteration)
	mux.HandleFunc("GET /grid", s.handleGrid)
	mux.HandleFunc("GET /census", s.handleCensus)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and releases the simulation.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("ecogrid-server listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close stops auto-running and closes every notifier.
func (s *Server) Close() {
	s.env.Stop()
	if err := s.notifierMgr.Close(); err != nil {
		s.logger.Warnf("Failed to close notifiers: error=%v", err)
	}
}
