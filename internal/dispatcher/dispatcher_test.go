package dispatcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushedJobRunsExactlyOnce(t *testing.T) {
	d, err := New(Config{HighPriorityCount: 1, NormalPriorityCount: 1, LowPriorityCount: 1})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop(true)

	var runs int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Push(NewJob(High, "count", func(pool *PoolHandle) apperror.Result {
		atomic.AddInt32(&runs, 1)
		wg.Done()
		return apperror.Ok()
	}))

	waitOrTimeout(t, &wg, time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestNormalWorkerPrefersHighOverItsOwnQueue(t *testing.T) {
	// One worker only, accepting {Normal, High}. Queue several Normal jobs
	// first, then one High job; the High job must run before any further
	// Normal job even though it was pushed last.
	d, err := New(Config{NormalPriorityCount: 1})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	release := make(chan struct{})

	block := NewJob(Normal, "block", func(pool *PoolHandle) apperror.Result {
		<-release
		mu.Lock()
		order = append(order, "block")
		mu.Unlock()
		return apperror.Ok()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	normal := NewJob(Normal, "normal", func(pool *PoolHandle) apperror.Result {
		mu.Lock()
		order = append(order, "normal")
		mu.Unlock()
		wg.Done()
		return apperror.Ok()
	})
	high := NewJob(High, "high", func(pool *PoolHandle) apperror.Result {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
		wg.Done()
		return apperror.Ok()
	})

	d.Push(block)
	require.NoError(t, d.Start())
	defer d.Stop(true)

	// Give the single worker a moment to pick up "block" and park on release.
	time.Sleep(20 * time.Millisecond)
	d.Push(normal)
	d.Push(high)
	close(release)

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	// "high" must come before "normal" regardless of push order.
	highIdx, normalIdx := indexOf(order, "high"), indexOf(order, "normal")
	assert.Less(t, highIdx, normalIdx)
}

func TestPushAfterStopFails(t *testing.T) {
	d, err := New(Config{HighPriorityCount: 1})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	d.Stop(false)

	result := d.Push(NewJob(High, "late", func(pool *PoolHandle) apperror.Result { return apperror.Ok() }))
	assert.False(t, result.OK)
}

func TestDrainFalseDiscardsQueuedJobs(t *testing.T) {
	d, err := New(Config{HighPriorityCount: 1})
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	d.Push(NewJob(High, "inflight", func(pool *PoolHandle) apperror.Result {
		close(started)
		<-release
		return apperror.Ok()
	}))

	var neverRan atomic.Bool
	d.Push(NewJob(High, "queued", func(pool *PoolHandle) apperror.Result {
		neverRan.Store(true)
		return apperror.Ok()
	}))

	require.NoError(t, d.Start())
	<-started

	stopped := make(chan struct{})
	go func() {
		d.Stop(false)
		close(stopped)
	}()
	// Let the in-flight job finish only after Stop(false) has marked the
	// pool stopped, so "queued" is still waiting when the stop lands.
	require.Eventually(t, d.JobPool().Lock, time.Second, time.Millisecond)
	close(release)
	<-stopped

	assert.False(t, neverRan.Load())
}

func TestTickerStopsWhenDispatcherStops(t *testing.T) {
	d, err := New(Config{HighPriorityCount: 1})
	require.NoError(t, err)
	require.NoError(t, d.Start())

	var ticks int32
	d.Ticker(High, "tick", time.Millisecond, func() apperror.Result {
		atomic.AddInt32(&ticks, 1)
		return apperror.Ok()
	})

	time.Sleep(20 * time.Millisecond)
	d.Stop(false)

	seen := atomic.LoadInt32(&ticks)
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&ticks), seen+1)
}

func TestJobPanicIsRecoveredAndReported(t *testing.T) {
	d, err := New(Config{HighPriorityCount: 1})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop(true)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Push(NewJob(High, "panicky", func(pool *PoolHandle) apperror.Result {
		defer wg.Done()
		panic("boom")
	}))

	waitOrTimeout(t, &wg, time.Second)

	// Dispatcher must still be usable after a panicking job.
	var ran int32
	var wg2 sync.WaitGroup
	wg2.Add(1)
	d.Push(NewJob(High, "after", func(pool *PoolHandle) apperror.Result {
		atomic.AddInt32(&ran, 1)
		wg2.Done()
		return apperror.Ok()
	}))
	waitOrTimeout(t, &wg2, time.Second)
	assert.EqualValues(t, 1, ran)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for jobs to complete")
	}
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
