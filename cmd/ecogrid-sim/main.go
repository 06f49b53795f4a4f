package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/pkg/profile"
)

type simConfig struct {
	pop       eco.Population
	ticks     int
	seed      uint64
	workers   int
	every     int
	printGrid bool
}

func main() {
	var cfg simConfig
	flag.IntVar(&cfg.pop.Plants, "plants", 10, "initial number of plants")
	flag.IntVar(&cfg.pop.Herbivores, "herbivores", 5, "initial number of herbivores")
	flag.IntVar(&cfg.pop.Carnivores, "carnivores", 3, "initial number of carnivores")
	flag.IntVar(&cfg.ticks, "ticks", 100, "number of ticks to run")
	flag.Uint64Var(&cfg.seed, "seed", 0, "random seed (0 derives one from the clock)")
	flag.IntVar(&cfg.workers, "workers", 1, "number of sweep workers")
	flag.IntVar(&cfg.every, "every", 10, "print a census line every N ticks (0 disables)")
	flag.BoolVar(&cfg.printGrid, "print-grid", false, "print the final grid")
	profileDir := flag.String("cpuprofile", "", "write a CPU profile into this directory")
	flag.Parse()

	stopProfile := func() {}
	if *profileDir != "" {
		stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop
	}
	err := run(cfg, os.Stdout)
	stopProfile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg simConfig, w io.Writer) error {
	if cfg.ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", cfg.ticks)
	}

	env := eco.NewEnvironment(eco.Options{Seed: cfg.seed, Workers: cfg.workers})
	if _, err := env.Start(cfg.pop); err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}

	fmt.Fprintf(w, "Simulation started (seed=%d, workers=%d)\n", env.Seed(), env.Workers())

	var totals eco.Activity
	ran := 0
	for ran < cfg.ticks {
		if _, err := env.Step(); err != nil {
			return fmt.Errorf("tick %d: %w", ran+1, err)
		}
		ran++

		tick, census, act, err := env.Stats()
		if err != nil {
			return err
		}
		totals.Births += act.Births
		totals.Deaths += act.Deaths
		totals.Moves += act.Moves
		totals.Meals += act.Meals

		if cfg.every > 0 && ran%cfg.every == 0 {
			printCensus(w, tick, census)
		}
		if census.Total() == 0 {
			break
		}
	}

	_, census, _, err := env.Stats()
	if err != nil {
		return err
	}
	printSummary(w, ran, census, totals)

	if cfg.printGrid {
		grid, err := env.Snapshot()
		if err != nil {
			return err
		}
		printGrid(w, grid)
	}
	return nil
}

func printCensus(w io.Writer, tick int64, c eco.Census) {
	fmt.Fprintf(w, "tick %4d  plants=%-3d herbivores=%-3d carnivores=%-3d\n",
		tick, c.Plants, c.Herbivores, c.Carnivores)
}

func printSummary(w io.Writer, ticks int, c eco.Census, totals eco.Activity) {
	fmt.Fprintf(w, "Simulation finished (ticks=%d)\n", ticks)
	if c.Total() == 0 {
		fmt.Fprintln(w, "All organisms died out")
	}
	fmt.Fprintln(w, "Population:")
	fmt.Fprintf(w, "  plants: %d\n", c.Plants)
	fmt.Fprintf(w, "  herbivores: %d\n", c.Herbivores)
	fmt.Fprintf(w, "  carnivores: %d\n", c.Carnivores)
	fmt.Fprintf(w, "Activity: births=%d deaths=%d moves=%d meals=%d\n",
		totals.Births, totals.Deaths, totals.Moves, totals.Meals)
}

func printGrid(w io.Writer, grid eco.Snapshot) {
	var sb strings.Builder
	for _, row := range grid {
		for _, c := range row {
			if c.IsEmpty() {
				sb.WriteByte('.')
				continue
			}
			sb.WriteString(c.Kind.String())
		}
		sb.WriteByte('\n')
	}
	fmt.Fprint(w, sb.String())
}
