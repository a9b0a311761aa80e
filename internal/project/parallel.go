package project

import (
	"context"
	"fmt"
	"sync"

	"implicit-skin/internal/field"
	"implicit-skin/internal/mathutil"
)

// chunkSize is the number of vertices a worker takes at a time.
const chunkSize = 256

// All projects every start point onto its target and writes the results into
// dst, which must have len(starts) entries. Workers own disjoint index
// ranges, so dst[i] always belongs to starts[i]. Cancellation is checked
// between chunks; on cancellation dst is partially written.
func All(ctx context.Context, f field.Field, starts []mathutil.Vec3, targets []float64, dst []Result, opt Options, workers int) error {
	if len(targets) != len(starts) || len(dst) != len(starts) {
		return fmt.Errorf("project: %d starts, %d targets, %d results", len(starts), len(targets), len(dst))
	}
	if workers <= 0 {
		workers = 1
	}

	chunks := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lo := range chunks {
				hi := min(lo+chunkSize, len(starts))
				for i := lo; i < hi; i++ {
					dst[i] = Project(f, starts[i], targets[i], opt)
				}
			}
		}()
	}

	var err error
send:
	for lo := 0; lo < len(starts); lo += chunkSize {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break send
		case chunks <- lo:
		}
	}
	close(chunks)
	wg.Wait()
	return err
}
