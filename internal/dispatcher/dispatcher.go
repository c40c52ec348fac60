// Package dispatcher implements the prioritized job dispatcher of
// spec.md §4.1: a fixed pool of workers, each bound to a subset of
// priorities, draining one shared multi-priority job pool.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/ngee044/realtimechat/internal/apperror"
)

// State is the dispatcher lifecycle of spec.md §4.1: Created -> Started -> Stopped.
type State int

const (
	Created State = iota
	Started
	Stopped
)

// Config mirrors the source's high/normal/low priority worker counts.
// LongTerm jobs are served by a dedicated pool of LongTermCount workers;
// when LongTermCount is 0 the Low workers also accept LongTerm.
type Config struct {
	HighPriorityCount   int
	NormalPriorityCount int
	LowPriorityCount    int
	LongTermCount       int
}

// Dispatcher is the priority-aware worker pool shared by every process
// role. It owns exactly one JobPool and a fixed set of Workers built at
// construction time.
type Dispatcher struct {
	mu      sync.Mutex
	state   State
	pool    *JobPool
	workers []*Worker
	wg      sync.WaitGroup
}

// New builds a Dispatcher's worker set from cfg but does not start it.
// Construction failure (a zero total worker count) is returned rather
// than bubbling out of Start, matching the spirit of the source's
// bad_alloc-from-ThreadPool contract translated to Go's error idiom.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.HighPriorityCount+cfg.NormalPriorityCount+cfg.LowPriorityCount+cfg.LongTermCount <= 0 {
		return nil, fmt.Errorf("dispatcher requires at least one worker")
	}

	d := &Dispatcher{pool: newJobPool()}

	for i := 0; i < cfg.HighPriorityCount; i++ {
		w, err := NewWorker([]Priority{High})
		if err != nil {
			return nil, err
		}
		d.workers = append(d.workers, w)
	}

	for i := 0; i < cfg.NormalPriorityCount; i++ {
		w, err := NewWorker([]Priority{Normal, High})
		if err != nil {
			return nil, err
		}
		d.workers = append(d.workers, w)
	}

	lowAccepts := []Priority{Low}
	if cfg.LongTermCount == 0 {
		lowAccepts = []Priority{Low, LongTerm}
	}
	for i := 0; i < cfg.LowPriorityCount; i++ {
		w, err := NewWorker(lowAccepts)
		if err != nil {
			return nil, err
		}
		d.workers = append(d.workers, w)
	}

	for i := 0; i < cfg.LongTermCount; i++ {
		w, err := NewWorker([]Priority{LongTerm})
		if err != nil {
			return nil, err
		}
		d.workers = append(d.workers, w)
	}

	return d, nil
}

// Start transitions Created -> Started and launches every worker's
// goroutine. Idempotent while already Started.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Started {
		return nil
	}
	if d.state == Stopped {
		return fmt.Errorf("dispatcher cannot restart once stopped")
	}

	for _, w := range d.workers {
		w.bind(d.pool)
		d.wg.Add(1)
		go w.run(&d.wg)
	}

	d.state = Started
	return nil
}

// Stop transitions to Stopped. When drain is true, workers finish the
// current job and every queued job before exiting; otherwise they finish
// only the job in flight and discard the rest. Stop blocks until every
// worker goroutine has exited.
func (d *Dispatcher) Stop(drain bool) {
	d.mu.Lock()
	if d.state == Stopped {
		d.mu.Unlock()
		return
	}
	d.state = Stopped
	d.mu.Unlock()

	d.pool.setStopped(drain)
	d.wg.Wait()
}

// Push enqueues job at its priority. Returns a Resource-error Result when
// the dispatcher has already stopped.
func (d *Dispatcher) Push(job *Job) apperror.Result {
	return d.pool.push(job)
}

// JobPool returns a handle usable from within a running job, letting a
// handler re-enqueue work onto the same dispatcher it runs under.
func (d *Dispatcher) JobPool() *PoolHandle {
	return &PoolHandle{pool: d.pool}
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Ticker re-posts fn as a self-rescheduling job at the given priority and
// interval, until the dispatcher stops. This is the "ticker" primitive
// spec.md §9 recommends in place of hand-rolled sleep+push loops: fn is
// invoked once per tick, and the loop exits cleanly as soon as
// PoolHandle.Lock() reports the dispatcher is no longer accepting pushes.
func (d *Dispatcher) Ticker(priority Priority, name string, interval time.Duration, fn func() apperror.Result) {
	var tick RunFunc
	tick = func(pool *PoolHandle) apperror.Result {
		result := fn()

		if pool.Lock() {
			return result
		}

		time.Sleep(interval)
		pool.Push(NewJob(priority, name, tick))
		return result
	}

	d.Push(NewJob(priority, name, tick))
}
