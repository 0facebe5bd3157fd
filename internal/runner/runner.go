package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/filestore"
	"github.com/runbox/runbox/internal/gatherer"
	"github.com/runbox/runbox/internal/runtimes"
	"github.com/runbox/runbox/internal/sandbox"
)

// Config carries the host ceilings requested budgets are clamped to.
type Config struct {
	DataDir string

	MaxTimeoutSec  int
	MaxMemoryBytes int64
	MaxOutputBytes int64
}

// Runner owns the full lifecycle of one execution request: validation,
// working directory, sandbox spawn, and result assembly. Safe for
// concurrent use; each request gets its own box and process tree.
type Runner struct {
	sb    sandbox.Sandbox
	reg   *runtimes.Registry
	store *filestore.Store
	cfg   Config
	log   *slog.Logger

	boxes   *boxes
	sysInfo string
}

func New(sb sandbox.Sandbox, reg *runtimes.Registry, store *filestore.Store, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		sb:      sb,
		reg:     reg,
		store:   store,
		cfg:     cfg,
		log:     log,
		boxes:   newBoxes(cfg.DataDir + "/boxes"),
		sysInfo: getSystemInfo(),
	}
}

func getSystemInfo() string {
	return fmt.Sprintf("%s/%s %d cpus %s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
}

// Run produces exactly one ExecResult per request. Misbehaviour of the
// code under execution is returned as data, never as an error; only the
// transported events go through the gatherer.
func (r *Runner) Run(ctx context.Context, req api.ExecReq, gath gatherer.ResultGatherer) api.ExecResult {
	start := time.Now()
	if req.ExecUuid == "" {
		req.ExecUuid = uuid.NewString()
	}
	log := r.log.With("exec_uuid", req.ExecUuid, "runtime", req.Runtime)

	gath.StartJob(r.sysInfo)
	res := r.run(ctx, start, req, gath, log)
	gath.FinishExec(&res)

	switch res.Status {
	case api.StatusRejected, api.StatusSandboxUnavailable:
		gath.FinishJob(res.ErrorMessage)
	default:
		gath.FinishJob(nil)
	}

	log.Info("execution finished", "status", res.Status, "elapsed_ms", res.ElapsedMs)
	return res
}

func (r *Runner) run(
	ctx context.Context,
	start time.Time,
	req api.ExecReq,
	gath gatherer.ResultGatherer,
	log *slog.Logger,
) api.ExecResult {
	if req.Code == "" {
		return rejected(req.ExecUuid, start, "code must not be empty")
	}
	rt, ok := r.reg.Get(req.Runtime)
	if !ok {
		return rejected(req.ExecUuid, start, fmt.Sprintf("unknown runtime identifier: %s", req.Runtime))
	}
	limits, err := effectiveLimits(req.Limits, r.cfg)
	if err != nil {
		return rejected(req.ExecUuid, start, err.Error())
	}

	// refuse up front rather than run unconstrained
	if err := r.sb.Verify(); err != nil {
		return unavailable(req.ExecUuid, start, err.Error())
	}

	if err := validateSeeds(req.SeedFiles); err != nil {
		return rejected(req.ExecUuid, start, err.Error())
	}
	if err := r.scheduleSeedDownloads(req.SeedFiles); err != nil {
		return unavailable(req.ExecUuid, start, err.Error())
	}

	box, err := r.boxes.acquire()
	if err != nil {
		return unavailable(req.ExecUuid, start, fmt.Sprintf("failed to prepare working directory: %v", err))
	}
	defer func() {
		if err := box.Close(); err != nil {
			log.Error("failed to clean up working directory", "err", err)
		}
	}()
	log.Debug("acquired box", "path", box.Path())

	// seed failures past validation are transport or host trouble, not
	// a fault of the request
	if err := r.materializeSeeds(box, req.SeedFiles); err != nil {
		return unavailable(req.ExecUuid, start, err.Error())
	}
	if err := box.AddFile(rt.CodeFname, []byte(req.Code)); err != nil {
		return unavailable(req.ExecUuid, start, fmt.Sprintf("failed to write code file: %v", err))
	}

	cmd := sandbox.Command{
		Argv:    append(append([]string{}, rt.ExecCmd...), rt.CodeFname),
		Dir:     box.Path(),
		Network: req.Network,
	}
	if req.Input != nil {
		cmd.Stdin = strings.NewReader(*req.Input)
	}

	gath.StartExec(rt.ID)
	rr, err := r.sb.Run(ctx, cmd, limits)
	if err != nil {
		return unavailable(req.ExecUuid, start, err.Error())
	}

	return assemble(req.ExecUuid, start, rr)
}

// validateSeeds checks the caller-controlled shape of the seed list;
// any violation is a request rejection.
func validateSeeds(seeds []api.SeedFile) error {
	for _, seed := range seeds {
		if !filepath.IsLocal(seed.Path) {
			return fmt.Errorf("seed file path escapes the working directory: %s", seed.Path)
		}
		if seed.Content == nil && seed.Url == nil {
			return fmt.Errorf("seed file %s has neither content nor url", seed.Path)
		}
		if seed.Url != nil && seed.Sha256 == nil {
			return fmt.Errorf("seed file %s has a url but no sha256", seed.Path)
		}
	}
	return nil
}

func (r *Runner) scheduleSeedDownloads(seeds []api.SeedFile) error {
	for _, seed := range seeds {
		if seed.Url == nil {
			continue
		}
		if r.store == nil {
			return fmt.Errorf("seed file %s requires a download url but no file store is configured", seed.Path)
		}
		if err := r.store.Schedule(*seed.Sha256, *seed.Url); err != nil {
			return fmt.Errorf("failed to schedule seed file download: %w", err)
		}
	}
	return nil
}

func (r *Runner) materializeSeeds(box *Box, seeds []api.SeedFile) error {
	for _, seed := range seeds {
		var content []byte
		switch {
		case seed.Content != nil:
			content = []byte(*seed.Content)
		case seed.Url != nil:
			data, err := r.store.Await(*seed.Sha256)
			if err != nil {
				return fmt.Errorf("failed to fetch seed file %s: %w", seed.Path, err)
			}
			content = data
		default:
			return fmt.Errorf("seed file %s has neither content nor url", seed.Path)
		}
		if err := box.AddFile(seed.Path, content); err != nil {
			return err
		}
	}
	return nil
}
