package sandbox

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnavailable is returned when the host cannot provide isolation or
// resource-limit guarantees. Code is never run unconstrained.
var ErrUnavailable = errors.New("sandbox unavailable on this host")

// Command describes one process tree to run inside the sandbox.
type Command struct {
	Argv []string
	Dir  string
	Env  []string

	Stdin io.Reader

	// Network opts into outbound network access. Default deny.
	Network bool
}

// Limits are the effective, already-clamped ceilings for one run.
// Immutable once the run starts.
type Limits struct {
	WallTime    time.Duration
	MemoryBytes int64
	OutputBytes int64
}

// RunResult is the raw outcome of one sandboxed run, before outcome
// classification.
type RunResult struct {
	ExitCode   *int64
	ExitSignal *int64

	Stdout []byte
	Stderr []byte

	TimedOut  bool
	OomKilled bool
	Truncated bool
	Cancelled bool

	WallTime        time.Duration
	PeakMemoryBytes int64

	// MemoryBestEffort is set when the memory ceiling was enforced by
	// polling rather than a hard host primitive.
	MemoryBestEffort bool
}

// Config selects and tunes the platform enforcement backend.
type Config struct {
	// CgroupRoot is the cgroup v2 directory runs are parented under.
	CgroupRoot string

	// MemPollInterval is the polling cadence of the best-effort memory
	// watcher used when no hard ceiling is available.
	MemPollInterval time.Duration

	// TermGrace is how long a terminated process tree gets between
	// SIGTERM and SIGKILL.
	TermGrace time.Duration
}

// Sandbox executes one process tree per call under the platform
// enforcement backend selected at startup.
type Sandbox interface {
	// Verify reports whether the backend can actually enforce its
	// guarantees on this host. A failing Verify means every Run would
	// return ErrUnavailable.
	Verify() error

	Run(ctx context.Context, cmd Command, limits Limits) (RunResult, error)
}

// New selects the enforcement backend for the current platform.
func New(cfg Config) Sandbox {
	return newSandbox(cfg.withDefaults())
}

func (c Config) withDefaults() Config {
	if c.CgroupRoot == "" {
		c.CgroupRoot = "/sys/fs/cgroup/runbox"
	}
	if c.MemPollInterval <= 0 {
		c.MemPollInterval = 100 * time.Millisecond
	}
	if c.TermGrace <= 0 {
		c.TermGrace = 500 * time.Millisecond
	}
	return c
}
