package dispatch

import (
	"context"
	"sync"

	"github.com/jzx17/reframe/pkg/types"
)

// AnalyzeBatch analyzes every request and delivers one BatchResult per
// request, in completion order, then closes the channel. Inline
// configurations run the batch sequentially before AnalyzeBatch returns.
// Offloaded batches keep at most Workers() requests in flight; admission is
// still governed by the backend.
func (d *Dispatcher) AnalyzeBatch(ctx context.Context, reqs []types.Request) <-chan types.BatchResult[string] {
	resultChan := make(chan types.BatchResult[string], len(reqs))
	cfg := d.Config()

	analyze := func(index int, req types.Request) {
		start := d.clock.Now()
		value, err := d.dispatch(ctx, cfg, cfg.Inline(), newRequest(req.Path, req.Content, req.Env, req.Minify))
		resultChan <- types.BatchResult[string]{
			Index:    index,
			Value:    value,
			Error:    err,
			Duration: d.clock.Since(start),
		}
	}

	if cfg.Inline() {
		for i, req := range reqs {
			analyze(i, req)
		}
		close(resultChan)
		return resultChan
	}

	go func() {
		defer close(resultChan)

		var wg sync.WaitGroup
		semaphore := make(chan struct{}, cfg.Workers())

		for i, req := range reqs {
			wg.Add(1)
			go func(index int, req types.Request) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				analyze(index, req)
			}(i, req)
		}

		wg.Wait()
	}()

	return resultChan
}
