//go:build !linux

package sandbox

import (
	"context"
	"fmt"
)

// Enforcement primitives are linux-only for now. Other platforms
// degrade to sandbox-unavailable instead of running code unconstrained.
type stubSandbox struct{}

func newSandbox(cfg Config) Sandbox {
	return &stubSandbox{}
}

func (s *stubSandbox) Verify() error {
	return fmt.Errorf("%w: only supported on linux", ErrUnavailable)
}

func (s *stubSandbox) Run(ctx context.Context, c Command, limits Limits) (RunResult, error) {
	return RunResult{}, fmt.Errorf("%w: only supported on linux", ErrUnavailable)
}

// Init is the linux confinement stage hook; a no-op elsewhere.
func Init() {}
