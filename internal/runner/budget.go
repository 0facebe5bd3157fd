package runner

import (
	"fmt"
	"time"

	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/sandbox"
)

// effectiveLimits validates the requested budget and clamps it to the
// host ceilings. Non-positive budget fields reject the request before
// any process is spawned; values above a ceiling are clamped down to it.
func effectiveLimits(req api.Limits, cfg Config) (sandbox.Limits, error) {
	if req.TimeoutSec <= 0 {
		return sandbox.Limits{}, fmt.Errorf("timeout_seconds must be positive, got %d", req.TimeoutSec)
	}
	if req.MaxMemoryBytes <= 0 {
		return sandbox.Limits{}, fmt.Errorf("max_memory_bytes must be positive, got %d", req.MaxMemoryBytes)
	}
	if req.MaxOutputBytes <= 0 {
		return sandbox.Limits{}, fmt.Errorf("max_output_bytes must be positive, got %d", req.MaxOutputBytes)
	}

	limits := sandbox.Limits{
		WallTime:    time.Duration(req.TimeoutSec) * time.Second,
		MemoryBytes: req.MaxMemoryBytes,
		OutputBytes: req.MaxOutputBytes,
	}

	if maxWall := time.Duration(cfg.MaxTimeoutSec) * time.Second; limits.WallTime > maxWall {
		limits.WallTime = maxWall
	}
	if limits.MemoryBytes > cfg.MaxMemoryBytes {
		limits.MemoryBytes = cfg.MaxMemoryBytes
	}
	if limits.OutputBytes > cfg.MaxOutputBytes {
		limits.OutputBytes = cfg.MaxOutputBytes
	}

	return limits, nil
}
