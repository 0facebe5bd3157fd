package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/runbox/runbox/internal/environment"
	"github.com/runbox/runbox/internal/filestore"
	"github.com/runbox/runbox/internal/runner"
	"github.com/runbox/runbox/internal/runtimes"
	"github.com/runbox/runbox/internal/sandbox"
	"github.com/runbox/runbox/internal/worker"
)

// host wires the execution stack shared by the serve, run, health and
// behave commands.
type host struct {
	cfg    *environment.EnvConfig
	reg    *runtimes.Registry
	sb     sandbox.Sandbox
	runner *runner.Runner
	pool   *worker.Pool
}

func newHost(runtimesPath string) (*host, error) {
	cfg, err := environment.ReadEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	reg := runtimes.NewRegistry()
	if runtimesPath != "" {
		if err := reg.LoadFile(runtimesPath); err != nil {
			return nil, err
		}
	}

	sb := sandbox.New(sandbox.Config{
		MemPollInterval: cfg.MemPollInterval,
	})
	if err := sb.Verify(); err != nil {
		slog.Warn("sandbox verification failed, executions will be refused", "error", err)
	}

	store := filestore.New(
		filepath.Join(cfg.DataDir, "files"),
		filepath.Join(cfg.DataDir, "downloads"),
	).WithDownloadFunc(filestore.HttpDownloadFunc())
	go store.Start()

	r := runner.New(sb, reg, store, runner.Config{
		DataDir:        cfg.DataDir,
		MaxTimeoutSec:  cfg.MaxTimeoutSec,
		MaxMemoryBytes: cfg.MaxMemoryBytes,
		MaxOutputBytes: cfg.MaxOutputBytes,
	}, slog.Default())

	return &host{
		cfg:    cfg,
		reg:    reg,
		sb:     sb,
		runner: r,
		pool:   worker.NewPool(r, cfg.MaxConcurrent),
	}, nil
}
