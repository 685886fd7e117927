package downloader

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// maxWorkers bounds the pool so one product page cannot flood a CDN
const maxWorkers = 16

// WorkerPool runs downloads concurrently
type WorkerPool struct {
	downloader  *Downloader
	concurrency int
}

// NewWorkerPool creates a new worker pool with specified concurrency
func NewWorkerPool(concurrency int, d *Downloader) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > maxWorkers {
		concurrency = maxWorkers
	}
	if d == nil {
		d = New(nil, nil, "")
	}
	return &WorkerPool{downloader: d, concurrency: concurrency}
}

// Run downloads every job and returns the results in job order. onDone, if
// set, is called once per finished job from the worker goroutines.
// Jobs not started before ctx ends are reported with ctx's error.
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job, opts Options, onDone func(*Result)) []*Result {
	results := make([]*Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex

	workers := min(wp.concurrency, len(jobs))
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range queue {
				log.Debug().Int("worker_id", id).Str("url", jobs[i].URL).Msg("Worker processing download")
				res := wp.downloader.Download(ctx, jobs[i], opts)
				results[i] = res
				if onDone != nil {
					mu.Lock()
					onDone(res)
					mu.Unlock()
				}
			}
		}(w)
	}

feed:
	for i := range jobs {
		select {
		case queue <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			results[i] = &Result{URL: jobs[i].URL, Err: ctx.Err()}
		}
	}
	return results
}
