package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/gatherer"
	"golang.org/x/sync/semaphore"
)

// Executor runs one request to completion. Satisfied by runner.Runner.
type Executor interface {
	Run(ctx context.Context, req api.ExecReq, gath gatherer.ResultGatherer) api.ExecResult
}

// Running describes one in-flight execution.
type Running struct {
	ExecUuid  string
	Runtime   string
	StartedAt time.Time

	cancel context.CancelFunc
}

// Pool bounds how many sandboxes run at once and tracks the in-flight
// set. Working directories and process trees stay exclusive to one
// request; the pool only shares accounting capacity.
type Pool struct {
	exec Executor
	sem  *semaphore.Weighted

	running *xsync.MapOf[string, *Running]

	totalRuns *xsync.Counter
	// highest single-execution peak observed, for the surrounding
	// system's aggregate memory accounting
	maxPeakBytes atomic.Int64
}

func NewPool(exec Executor, maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{
		exec:      exec,
		sem:       semaphore.NewWeighted(maxConcurrent),
		running:   xsync.NewMapOf[string, *Running](),
		totalRuns: xsync.NewCounter(),
	}
}

// Execute blocks until a slot is free, then runs the request. Waiting
// for a slot respects ctx.
func (p *Pool) Execute(ctx context.Context, req api.ExecReq, gath gatherer.ResultGatherer) api.ExecResult {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		msg := err.Error()
		return api.ExecResult{
			ExecUuid:     req.ExecUuid,
			Status:       api.StatusCancelled,
			ErrorMessage: &msg,
			StartTime:    time.Now().Format(time.RFC3339),
			FinishTime:   time.Now().Format(time.RFC3339),
		}
	}
	defer p.sem.Release(1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// assign the uuid here so the execution is cancellable and visible
	// in the snapshot even when the caller sent none
	if req.ExecUuid == "" {
		req.ExecUuid = uuid.NewString()
	}

	entry := &Running{
		ExecUuid:  req.ExecUuid,
		Runtime:   req.Runtime,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	p.running.Store(req.ExecUuid, entry)
	defer p.running.Delete(req.ExecUuid)

	res := p.exec.Run(runCtx, req, gath)

	p.totalRuns.Inc()
	if res.PeakMemoryBytes != nil {
		for {
			cur := p.maxPeakBytes.Load()
			if *res.PeakMemoryBytes <= cur || p.maxPeakBytes.CompareAndSwap(cur, *res.PeakMemoryBytes) {
				break
			}
		}
	}
	return res
}

// Cancel requests caller-initiated termination of an in-flight
// execution. Reports whether the uuid was found.
func (p *Pool) Cancel(execUuid string) bool {
	entry, ok := p.running.Load(execUuid)
	if !ok {
		return false
	}
	entry.cancel()
	return true
}

// Snapshot returns the currently running executions.
func (p *Pool) Snapshot() []Running {
	var out []Running
	p.running.Range(func(_ string, r *Running) bool {
		out = append(out, *r)
		return true
	})
	return out
}

// TotalRuns is the number of completed executions since startup.
func (p *Pool) TotalRuns() int64 {
	return p.totalRuns.Value()
}

// MaxPeakMemoryBytes is the largest per-execution memory peak observed.
func (p *Pool) MaxPeakMemoryBytes() int64 {
	return p.maxPeakBytes.Load()
}
