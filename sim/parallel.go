package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// runZones runs the six phases of every zone for tick. Zones only share
// the ledger and the sinks, so with parallel_zones they run concurrently.
func (s *Sim) runZones(ctx context.Context, tick int) error {
	if !s.cfg.Simulation.ParallelZones || len(s.zones) < 2 {
		for _, z := range s.zones {
			if err := ctx.Err(); err != nil {
				return err
			}
			z.RunTick(tick)
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, z := range s.zones {
		z := z
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			z.RunTick(tick)
			return nil
		})
	}
	return g.Wait()
}
