package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go-eye-inspector/internal/logger"
)

// PoolStats is a snapshot of the pool counters
type PoolStats struct {
	Workers       int
	TotalJobs     int64
	CompletedJobs int64
	ActiveWorkers int64
}

// WorkerPool runs pixel-scan jobs on a fixed set of goroutines
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	activeWorkers atomic.Int64
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a job. It returns false once the pool is closed.
func (wp *WorkerPool) Submit(job func()) bool {
	wp.Start()

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}

	wp.wg.Add(1)
	wp.totalJobs.Add(1)
	wp.jobQueue <- func() {
		wp.activeWorkers.Add(1)
		defer func() {
			if r := recover(); r != nil {
				logger.Component("worker_pool").WithField("panic", r).Error("Pool job panicked")
			}
			wp.activeWorkers.Add(-1)
			wp.completedJobs.Add(1)
			wp.wg.Done()
		}()
		job()
	}
	return true
}

// Run executes jobs on the pool and blocks until all of them finish.
// Jobs rejected by a closed pool run on the caller's goroutine.
func (wp *WorkerPool) Run(jobs ...func()) {
	var local sync.WaitGroup
	for _, job := range jobs {
		job := job
		local.Add(1)
		if !wp.Submit(func() {
			defer local.Done()
			job()
		}) {
			job()
			local.Done()
		}
	}
	local.Wait()
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// GetStats returns the current counters
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		TotalJobs:     wp.totalJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
		ActiveWorkers: wp.activeWorkers.Load(),
	}
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobQueue)
	}
}

// stripBounds splits [0, height) into at most n contiguous row ranges.
func stripBounds(height, n int) [][2]int {
	if n > height {
		n = height
	}
	if n <= 0 {
		n = 1
	}
	rows := (height + n - 1) / n
	var out [][2]int
	for start := 0; start < height; start += rows {
		end := start + rows
		if end > height {
			end = height
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
