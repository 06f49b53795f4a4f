package eco

import (
	"fmt"
	"sync"
	"time"
)

// Options configures an Environment.
type Options struct {
	// Workers is the number of sweep workers. Values below 2 select the
	// sequential row-major sweep.
	Workers int
	// Seed seeds the generators. Zero picks a clock-derived seed.
	Seed uint64
	// Size overrides the grid side length; zero means GridSize.
	Size   int
	Logger Logger
}

// Environment owns the grid and advances it one tick at a time. It starts
// idle; Start populates the grid and moves it to running, after which Step
// may be called any number of times. A tick runs entirely under the write
// lock, so readers never observe a partially applied tick.
type Environment struct {
	mu       sync.RWMutex
	size     int
	grid     *Grid
	locks    *lockTable
	rngs     []RNG
	seed     uint64
	tick     int64
	started  bool
	activity Activity

	logger   Logger
	notifier *NotificationManager

	stopCh    chan struct{}
	isRunning bool
}

func NewEnvironment(opts Options) *Environment {
	workers := max(opts.Workers, 1)
	seed := ResolveSeed(opts.Seed)

	rngs := make([]RNG, workers)
	for i := range rngs {
		rngs[i] = NewRNG(seed, uint64(i+1))
	}

	grid := NewGrid(opts.Size)
	e := &Environment{
		size:   grid.Size(),
		grid:   grid,
		rngs:   rngs,
		seed:   seed,
		logger: loggerOrNoOp(opts.Logger),
		stopCh: make(chan struct{}),
	}
	if workers > 1 {
		e.locks = newLockTable(grid.Size())
	}
	return e
}

// SetNotificationManager sets the manager that receives an event after
// every tick. Passing nil disables notifications.
func (e *Environment) SetNotificationManager(nm *NotificationManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = nm
}

// Seed returns the seed the generators were created from.
func (e *Environment) Seed() uint64 { return e.seed }

// Workers returns the number of sweep workers.
func (e *Environment) Workers() int { return len(e.rngs) }

// Size returns the side length of the grid.
func (e *Environment) Size() int { return e.size }

// Started reports whether Start has succeeded at least once.
func (e *Environment) Started() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// Tick returns the number of ticks since the last Start.
func (e *Environment) Tick() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// Start replaces the grid with a fresh one seeded with pop and resets the
// tick. A rejected population leaves the previous grid and state untouched.
func (e *Environment) Start(pop Population) (Snapshot, error) {
	if err := pop.Validate(e.size * e.size); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Seed a fresh grid and swap it in only on success.
	grid := NewGrid(e.size)
	if err := Populate(grid, e.rngs[0], pop); err != nil {
		return nil, fmt.Errorf("populating grid: %w", err)
	}
	e.grid = grid
	e.tick = 0
	e.activity = Activity{}
	e.started = true

	e.logger.Infof("simulation started: plants=%d herbivores=%d carnivores=%d workers=%d",
		pop.Plants, pop.Herbivores, pop.Carnivores, len(e.rngs))
	return e.grid.Snapshot(), nil
}

// Step advances the simulation by one tick and returns the resulting grid.
// Before Start it returns ErrNotInitialized and changes nothing.
func (e *Environment) Step() (Snapshot, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}

	e.tick++
	tick := e.tick
	var act Activity
	var err error
	if e.locks != nil {
		act, err = sweepParallel(e.grid, e.locks, e.rngs, tick)
	} else {
		act, err = sweepSequential(e.grid, e.rngs[0], tick)
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Errorf("tick failed: tick=%d error=%v", tick, err)
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}
	e.activity = act
	snap := e.grid.Snapshot()
	// Enqueue under the lock so events leave in tick order.
	if e.notifier != nil {
		e.notifier.Enqueue(NewTickEvent(tick, snap, act))
	}
	e.mu.Unlock()

	census := snap.Census()
	e.logger.Debugf("tick completed: tick=%d plants=%d herbivores=%d carnivores=%d births=%d deaths=%d moves=%d meals=%d",
		tick, census.Plants, census.Herbivores, census.Carnivores, act.Births, act.Deaths, act.Moves, act.Meals)

	return snap, nil
}

// Snapshot returns the current grid without advancing it.
func (e *Environment) Snapshot() (Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return nil, ErrNotInitialized
	}
	return e.grid.Snapshot(), nil
}

// Stats returns the current tick, census and the activity of the last tick.
func (e *Environment) Stats() (int64, Census, Activity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return 0, Census{}, Activity{}, ErrNotInitialized
	}
	var census Census
	for _, c := range e.grid.cells {
		census.add(c.Kind)
	}
	return e.tick, census, e.activity, nil
}

// Run advances the environment every interval in a background goroutine
// until Stop is called. It can be called again after Stop. Calling Run
// while already running is a no-op.
func (e *Environment) Run(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.isRunning {
		e.mu.Unlock()
		return nil
	}
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	e.isRunning = true
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.Step(); err != nil {
					e.logger.Errorf("auto step failed: error=%v", err)
				}
			case <-stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop ends a Run loop. It is a no-op when the environment is not running.
func (e *Environment) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	close(e.stopCh)
	e.isRunning = false
}

// IsRunning reports whether a Run loop is active.
func (e *Environment) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}
