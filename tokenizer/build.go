package tokenizer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BuildOptions controls how tokenizer structures are constructed. Every
// option yields identical structures; they only change throughput.
type BuildOptions struct {
	// Sequential runs construction steps one after another on the calling
	// goroutine.
	Sequential bool

	// Workers bounds the number of concurrent steps per phase. Zero runs
	// every step of a phase at once.
	Workers int
}

// phase runs independent construction steps and waits for all of them. The
// error returned is the one from the earliest failing step in argument order
// so that concurrent and sequential builds fail the same way.
func (o BuildOptions) phase(ctx context.Context, steps ...func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.Sequential {
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, len(steps))

	var g errgroup.Group
	if o.Workers > 0 {
		g.SetLimit(o.Workers)
	}

	for i, step := range steps {
		g.Go(func() error {
			errs[i] = step()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
