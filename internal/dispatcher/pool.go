package dispatcher

import (
	"sync"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// JobPool is the shared multi-priority FIFO store described in spec.md
// §4.1. All workers of a Dispatcher pop from the same JobPool.
type JobPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[Priority][]*Job
	stopped bool
	draining bool
}

func newJobPool() *JobPool {
	p := &JobPool{
		queues: make(map[Priority][]*Job, len(allPriorities)),
	}
	for _, pr := range allPriorities {
		p.queues[pr] = nil
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// push appends job to its priority's FIFO and wakes one waiting worker.
// Fails with a Resource error once the pool has stopped accepting work.
func (p *JobPool) push(job *Job) apperror.Result {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return apperror.Fail("dispatcher is stopped")
	}
	p.queues[job.Priority] = append(p.queues[job.Priority], job)
	depth := len(p.queues[job.Priority])
	p.mu.Unlock()

	metrics.DispatcherQueueDepth.WithLabelValues(job.Priority.String()).Set(float64(depth))
	p.cond.Signal()
	return apperror.Ok()
}

// popFor blocks until a job whose priority is in accepted becomes
// available, the pool is stopped (non-draining), or the pool is stopped
// and draining but empty. Returns nil when the worker should exit.
func (p *JobPool) popFor(accepted []Priority) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.stopped && !p.draining {
			return nil
		}

		if job := p.popLocked(accepted); job != nil {
			return job
		}
		if p.stopped && p.draining && !p.hasAnyLocked(accepted) {
			return nil
		}

		p.cond.Wait()
	}
}

// popLocked implements strict priority: it always prefers the globally
// higher priority among the set a worker accepts, regardless of the order
// that set was declared in. This is what lets Normal workers (which also
// accept High) yield to High work ahead of their own queue.
func (p *JobPool) popLocked(accepted []Priority) *Job {
	acceptedSet := toSet(accepted)
	for _, pr := range allPriorities {
		if !acceptedSet[pr] {
			continue
		}
		q := p.queues[pr]
		if len(q) == 0 {
			continue
		}
		job := q[0]
		p.queues[pr] = q[1:]
		metrics.DispatcherQueueDepth.WithLabelValues(pr.String()).Set(float64(len(p.queues[pr])))
		return job
	}
	return nil
}

func (p *JobPool) hasAnyLocked(accepted []Priority) bool {
	for _, pr := range accepted {
		if len(p.queues[pr]) > 0 {
			return true
		}
	}
	return false
}

func (p *JobPool) setStopped(drain bool) {
	p.mu.Lock()
	p.stopped = true
	p.draining = drain
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *JobPool) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func toSet(priorities []Priority) map[Priority]bool {
	set := make(map[Priority]bool, len(priorities))
	for _, pr := range priorities {
		set[pr] = true
	}
	return set
}

// PoolHandle is the view of a JobPool exposed to a running Job, per
// spec.md §4.1's job_pool(). lock() is advisory: it tells the caller
// whether a push right now would be rejected, so a self-rescheduling job
// can decide to stop repositing instead of racing a push against stop().
type PoolHandle struct {
	pool *JobPool
}

func (h *PoolHandle) Lock() bool { return h.pool.isStopped() }

func (h *PoolHandle) Push(job *Job) apperror.Result { return h.pool.push(job) }
