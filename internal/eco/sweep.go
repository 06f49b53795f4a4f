package eco

import "golang.org/x/sync/errgroup"

// visit runs the rules for pos if it held an organism when tick began. An
// out-of-bounds panic from position arithmetic comes back as an error;
// any other panic propagates.
func visit(g *Grid, rng RNG, pos Position, tick int64, act *Activity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			oob, ok := r.(*OutOfBoundsError)
			if !ok {
				panic(r)
			}
			err = oob
		}
	}()
	if g.liveAtStart(pos, tick) {
		act.record(applyRules(g, rng, pos, tick))
	}
	return nil
}

// sweepSequential visits every cell in row-major order and runs the rules
// for each organism that was alive when tick began.
func sweepSequential(g *Grid, rng RNG, tick int64) (Activity, error) {
	var act Activity
	n := g.Size()
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if err := visit(g, rng, Position{Row: row, Col: col}, tick, &act); err != nil {
				return act, err
			}
		}
	}
	return act, nil
}

// sweepParallel splits the rows between len(rngs) workers, interleaved so
// every worker gets a similar share of the grid. Each cell update holds the
// cell's neighborhood lock for its whole turn, and each worker draws from
// its own generator. The first failing worker's error is returned once all
// workers have finished.
func sweepParallel(g *Grid, locks *lockTable, rngs []RNG, tick int64) (Activity, error) {
	n := g.Size()
	perWorker := make([]Activity, len(rngs))

	var eg errgroup.Group
	for w, rng := range rngs {
		eg.Go(func() error {
			for row := w; row < n; row += len(rngs) {
				for col := 0; col < n; col++ {
					pos := Position{Row: row, Col: col}
					unlock := locks.lock(pos)
					err := visit(g, rng, pos, tick, &perWorker[w])
					unlock()
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	err := eg.Wait()

	var act Activity
	for _, a := range perWorker {
		act.merge(a)
	}
	return act, err
}
