package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/sheshield/sheshield/server/models"
)

const MAX_CONCURRENCY = 1

// WorkerPoolAdapter glues the cron scheduler to the db-backed worker pool:
// periodic jobs are enqueued by gocron & picked up by the pool's workers,
// while requeuers rescue stuck and due-scheduled jobs.
type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *workerPool
	requeuers     []*requeuer
	logg          *zap.SugaredLogger
}

func NewWorkerAdapter(timeZoneArg string, logg *zap.SugaredLogger) *WorkerPoolAdapter {
	timeZone, err := time.LoadLocation(timeZoneArg)
	if err != nil {
		logg.Warnf("unknown time zone %q, falling back to UTC", timeZoneArg)
		timeZone = time.UTC
	}

	cronScheduler := gocron.NewScheduler(timeZone)
	cronScheduler.TagsUnique()

	requeuers := []*requeuer{}
	for _, queue := range []string{models.IN_PROGRESS_JOB, models.SCHEDULED_JOB} {
		rq, err := newRequeuer(queue, logg)
		if err != nil {
			logg.Panic(err)
		}
		requeuers = append(requeuers, rq)
	}

	return &WorkerPoolAdapter{
		cronScheduler: cronScheduler,
		pool:          newWorkerPool(MAX_CONCURRENCY, logg),
		requeuers:     requeuers,
		logg:          logg,
	}
}

// Start starts the cron scheduler, requeuers & worker pool
func (adapter *WorkerPoolAdapter) Start() error {
	adapter.logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.pool.start()
	for _, rq := range adapter.requeuers {
		rq.start()
	}

	return nil
}

// Stop stops the cron scheduler, requeuers & worker pool
func (adapter *WorkerPoolAdapter) Stop() error {
	adapter.logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()
	for _, rq := range adapter.requeuers {
		rq.stop()
	}

	return nil
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, now - to be executed as soon as a
// worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	return adapter.PerformIn(0, job)
}

// PerformIn schedules a job to be performed 'secondsInFuture' seconds from now
func (adapter *WorkerPoolAdapter) PerformIn(secondsInFuture int64, job JobParams) error {
	adapter.logg.Infof("Enqueuing job: %v", job.Name)

	err := adapter.pool.enqueueIn(secondsInFuture, job)
	if errors.Is(err, models.ErrDuplicateJob) {
		adapter.logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job.Name, err)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue (to be executed) periodically,
// based on the cron expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				err := adapter.Perform(job)
				if err != nil {
					adapter.logg.Error(err)
				}
			},
			job,
		)

	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}
