package runner

import (
	"testing"
	"time"

	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/sandbox"
	"github.com/stretchr/testify/require"
)

func code(c int64) *int64 { return &c }

func TestAssembleClassification(t *testing.T) {
	tests := []struct {
		name string
		rr   sandbox.RunResult
		want api.Status
	}{
		{"clean exit", sandbox.RunResult{ExitCode: code(0)}, api.StatusOk},
		{"nonzero exit", sandbox.RunResult{ExitCode: code(1)}, api.StatusCrashed},
		{"killed by signal", sandbox.RunResult{ExitSignal: code(11)}, api.StatusCrashed},
		{"timed out", sandbox.RunResult{TimedOut: true}, api.StatusTimedOut},
		{"oom killed", sandbox.RunResult{OomKilled: true, ExitSignal: code(9)}, api.StatusMemoryExceeded},
		{"output truncated", sandbox.RunResult{Truncated: true, ExitSignal: code(9)}, api.StatusOutputTruncated},
		{"cancelled", sandbox.RunResult{Cancelled: true}, api.StatusCancelled},
		// cancellation wins over everything the kill itself caused
		{"cancelled and truncated", sandbox.RunResult{Cancelled: true, Truncated: true}, api.StatusCancelled},
		// a timeout kill can also leave truncated output behind
		{"timeout and truncated", sandbox.RunResult{TimedOut: true, Truncated: true}, api.StatusTimedOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := assemble("uuid-1", time.Now(), tt.rr)
			require.Equal(t, tt.want, res.Status)
		})
	}
}

func TestAssembleCarriesRawData(t *testing.T) {
	start := time.Now().Add(-2 * time.Second)
	rr := sandbox.RunResult{
		ExitCode:        code(0),
		Stdout:          []byte("out"),
		Stderr:          []byte("err"),
		WallTime:        1500 * time.Millisecond,
		PeakMemoryBytes: 42 * 1024 * 1024,
	}

	res := assemble("uuid-2", start, rr)

	require.Equal(t, "uuid-2", res.ExecUuid)
	require.Equal(t, "out", res.Stdout)
	require.Equal(t, "err", res.Stderr)
	require.Equal(t, int64(1500), res.ElapsedMs)
	require.NotNil(t, res.PeakMemoryBytes)
	require.Equal(t, int64(42*1024*1024), *res.PeakMemoryBytes)
}

func TestEffectiveLimits(t *testing.T) {
	cfg := Config{MaxTimeoutSec: 60, MaxMemoryBytes: 512 << 20, MaxOutputBytes: 1 << 20}

	limits, err := effectiveLimits(api.Limits{TimeoutSec: 5, MaxMemoryBytes: 64 << 20, MaxOutputBytes: 64 << 10}, cfg)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, limits.WallTime)
	require.Equal(t, int64(64<<20), limits.MemoryBytes)
	require.Equal(t, int64(64<<10), limits.OutputBytes)

	// above-ceiling values clamp, they do not reject
	limits, err = effectiveLimits(api.Limits{TimeoutSec: 999, MaxMemoryBytes: 1 << 40, MaxOutputBytes: 1 << 40}, cfg)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, limits.WallTime)
	require.Equal(t, int64(512<<20), limits.MemoryBytes)
	require.Equal(t, int64(1<<20), limits.OutputBytes)

	_, err = effectiveLimits(api.Limits{TimeoutSec: 0, MaxMemoryBytes: 1, MaxOutputBytes: 1}, cfg)
	require.Error(t, err)
}
