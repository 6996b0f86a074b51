package engine

import (
	"context"

	"kcore/internal/issue"
	"kcore/internal/state"

	"golang.org/x/sync/errgroup"
)

// Summary merges the results of several drivers.
type Summary struct {
	Issues []*issue.Issue
	Stats  Stats
}

func (s *Summary) add(d *Driver) {
	s.Issues = append(s.Issues, d.Issues()...)
	st := d.Stats()
	s.Stats.Steps += st.Steps
	s.Stats.Hooked += st.Hooked
	s.Stats.Forks += st.Forks
	s.Stats.Completed += st.Completed
	s.Stats.Violations += st.Violations
	s.Stats.Dropped += st.Dropped
}

// RunSharded deals roots round-robin across workers. Every worker runs its own
// driver from newDriver, so schedulers and states are never shared; drivers
// should share one PathCounter when they write into the same directory.
func RunSharded(ctx context.Context, roots []*state.State, workers int, newDriver func(shard int) *Driver) (*Summary, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(roots) && len(roots) > 0 {
		workers = len(roots)
	}

	g, gctx := errgroup.WithContext(ctx)
	drivers := make([]*Driver, workers)
	for w := 0; w < workers; w++ {
		var shard []*state.State
		for i := w; i < len(roots); i += workers {
			shard = append(shard, roots[i])
		}
		d := newDriver(w)
		drivers[w] = d
		g.Go(func() error {
			return d.Run(gctx, shard...)
		})
	}
	err := g.Wait()

	summary := &Summary{}
	for _, d := range drivers {
		summary.add(d)
	}
	return summary, err
}
