package runner

import (
	"time"

	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/sandbox"
)

// assemble derives the one terminal ExecResult of a request from the
// raw sandbox outcome. Classification precedence: caller cancellation,
// then limiter-triggered terminations, then the child's own exit.
func assemble(execUuid string, start time.Time, rr sandbox.RunResult) api.ExecResult {
	res := api.ExecResult{
		ExecUuid:   execUuid,
		ExitCode:   rr.ExitCode,
		ExitSignal: rr.ExitSignal,
		Stdout:     string(rr.Stdout),
		Stderr:     string(rr.Stderr),
		ElapsedMs:  rr.WallTime.Milliseconds(),
		StartTime:  start.Format(time.RFC3339),
		FinishTime: time.Now().Format(time.RFC3339),
	}
	if rr.PeakMemoryBytes > 0 {
		peak := rr.PeakMemoryBytes
		res.PeakMemoryBytes = &peak
	}

	switch {
	case rr.Cancelled:
		res.Status = api.StatusCancelled
	case rr.TimedOut:
		res.Status = api.StatusTimedOut
	case rr.OomKilled:
		res.Status = api.StatusMemoryExceeded
	case rr.Truncated:
		res.Status = api.StatusOutputTruncated
	case rr.ExitCode != nil && *rr.ExitCode == 0:
		res.Status = api.StatusOk
	default:
		res.Status = api.StatusCrashed
	}
	return res
}

func rejected(execUuid string, start time.Time, msg string) api.ExecResult {
	return terminal(execUuid, start, api.StatusRejected, msg)
}

func unavailable(execUuid string, start time.Time, msg string) api.ExecResult {
	return terminal(execUuid, start, api.StatusSandboxUnavailable, msg)
}

func terminal(execUuid string, start time.Time, status api.Status, msg string) api.ExecResult {
	return api.ExecResult{
		ExecUuid:     execUuid,
		Status:       status,
		ErrorMessage: &msg,
		ElapsedMs:    time.Since(start).Milliseconds(),
		StartTime:    start.Format(time.RFC3339),
		FinishTime:   time.Now().Format(time.RFC3339),
	}
}
