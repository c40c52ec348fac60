package dispatcher

import (
	"fmt"
	"sync"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// Worker consumes jobs whose priority is in its accepted set. It runs on
// its own goroutine, bound to one JobPool for its whole life.
type Worker struct {
	accepted []Priority
	pool     *JobPool
	handle   *PoolHandle
	done     chan struct{}
}

// NewWorker constructs a worker bound to a non-empty subset of priorities.
// Construction failure (an empty accepted set) is returned from
// dispatcher.New, which builds every worker before Start is called.
func NewWorker(accepted []Priority) (*Worker, error) {
	if len(accepted) == 0 {
		return nil, fmt.Errorf("worker must accept at least one priority")
	}
	return &Worker{accepted: accepted, done: make(chan struct{})}, nil
}

func (w *Worker) bind(pool *JobPool) {
	w.pool = pool
	w.handle = &PoolHandle{pool: pool}
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(w.done)

	for {
		job := w.pool.popFor(w.accepted)
		if job == nil {
			return
		}
		w.execute(job)
	}
}

// execute runs one job, recovering from a panicking handler so a single
// bad job never takes a worker down.
func (w *Worker) execute(job *Job) {
	result := w.safeRun(job)

	if result.OK {
		metrics.JobsProcessedTotal.WithLabelValues(job.Priority.String()).Inc()
		logging.WithFields(map[string]interface{}{
			"job":      job.Name,
			"priority": job.Priority.String(),
		}).Debug("job completed")
		return
	}

	metrics.JobsFailedTotal.WithLabelValues(job.Priority.String()).Inc()
	logging.WithFields(map[string]interface{}{
		"job":      job.Name,
		"priority": job.Priority.String(),
		"error":    result.Message,
	}).Error("job failed")
}

func (w *Worker) safeRun(job *Job) (result apperror.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = apperror.Fail(fmt.Sprintf("panic in job %q: %v", job.Name, r))
		}
	}()
	return job.run(w.handle)
}
