package work

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sheshield/sheshield/server/models"
)

type workerPool struct {
	workers     []*worker
	concurrency int
	started     bool
}

func newWorkerPool(concurrency int, logg *zap.SugaredLogger) *workerPool {
	wp := workerPool{concurrency: concurrency}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker([]int64{0, 10, 100, 120}, logg))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *workerPool) registerHandler(name string, handler Handler) error {
	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)
		if err != nil {
			return err
		}
	}

	return nil
}

// enqueue adds a job to the queue(to be executed) by creating a DB record
// based on the 'JobParams' provided
func (wp *workerPool) enqueue(job JobParams) error {
	return wp.enqueueIn(0, job)
}

// enqueueIn schedules a job to be queued 'secondsInFuture' seconds from now
func (wp *workerPool) enqueueIn(secondsInFuture int64, job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	argsAsJson, err := json.Marshal(job.Args)
	if err != nil {
		return err
	}

	// This ensures that all jobs currently scheduled, in the queue or
	// in-progress are unique
	return models.CreateUniqueJobByName(
		job.Name,
		job.Handler,
		string(argsAsJson),
		time.Now().Add(time.Duration(secondsInFuture)*time.Second),
	)
}

// start starts all workers in pool i.e the workers can start processing jobs
func (wp *workerPool) start() {
	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool i.e jobs will stop being processed
func (wp *workerPool) stop() {
	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}
