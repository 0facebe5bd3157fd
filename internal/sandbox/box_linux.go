//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// termination reasons, first one wins
const (
	reasonNone int32 = iota
	reasonTimeout
	reasonMemory
	reasonOutput
	reasonCancel
)

type linuxSandbox struct {
	cfg        Config
	useCgroup  bool
	canUnshare bool
}

func newSandbox(cfg Config) Sandbox {
	return &linuxSandbox{
		cfg:        cfg,
		useCgroup:  cgroupUsable(cfg.CgroupRoot),
		canUnshare: os.Geteuid() == 0 || usernsEnabled(),
	}
}

func (s *linuxSandbox) Verify() error {
	if !s.canUnshare {
		return fmt.Errorf("%w: namespaces require root or unprivileged user namespaces", ErrUnavailable)
	}
	if !s.useCgroup {
		// the polling fallback needs /proc memory accounting
		if _, err := readVmHWM(os.Getpid()); err != nil {
			return fmt.Errorf("%w: no cgroup v2 and no /proc memory accounting", ErrUnavailable)
		}
	}
	return nil
}

func (s *linuxSandbox) Run(ctx context.Context, c Command, limits Limits) (RunResult, error) {
	if err := s.Verify(); err != nil {
		return RunResult{}, err
	}
	if len(c.Argv) == 0 {
		return RunResult{}, fmt.Errorf("command argv is empty")
	}

	var cg *runCgroup
	if s.useCgroup {
		var err error
		cg, err = createRunCgroup(s.cfg.CgroupRoot, limits)
		if err != nil {
			return RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer cg.remove()
	}

	// the child enters the namespaces as a re-execution of this binary;
	// the confinement stage in init_linux.go swaps the filesystem root
	// and execs the real command
	cmd := exec.Command("/proc/self/exe")
	cmd.Args = append([]string{"/proc/self/exe"}, c.Argv...)
	cmd.Dir = c.Dir
	env := c.Env
	if env == nil {
		env = []string{
			"PATH=/usr/local/bin:/usr/bin:/bin",
			"HOME=/box",
			"LANG=C.UTF-8",
		}
	}
	cmd.Env = append(append([]string{}, env...),
		initFlagEnv+"=1",
		initBoxEnv+"="+c.Dir,
	)
	cmd.Stdin = c.Stdin
	cmd.SysProcAttr = s.sysProcAttr(c, cg)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("failed to start process: %w", err)
	}
	pid := cmd.Process.Pid

	var reason atomic.Int32
	term := &terminator{pgid: pid, cg: cg, grace: s.cfg.TermGrace}
	killFor := func(r int32) func() {
		return func() {
			reason.CompareAndSwap(reasonNone, r)
			term.kill()
		}
	}

	capt := newCapture(limits.OutputBytes, killFor(reasonOutput))

	var mw *memWatcher
	if cg == nil {
		applyRlimits(pid, limits)
		mw = watchMemory(pid, limits.MemoryBytes, s.cfg.MemPollInterval, killFor(reasonMemory))
	}

	timer := time.AfterFunc(limits.WallTime, killFor(reasonTimeout))

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			killFor(reasonCancel)()
		case <-waitDone:
		}
	}()

	// drain both streams concurrently with execution so the child can
	// never deadlock on a full pipe
	var g errgroup.Group
	g.Go(func() error { return capt.drain(stdoutPipe, &capt.stdout) })
	g.Go(func() error { return capt.drain(stderrPipe, &capt.stderr) })
	_ = g.Wait()

	waitErr := cmd.Wait()
	close(waitDone)
	timer.Stop()

	// anything that escaped the direct child dies with the group
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	if cg != nil {
		_ = cg.kill()
	}

	res := RunResult{
		Stdout:    capt.Stdout(),
		Stderr:    capt.Stderr(),
		Truncated: capt.Truncated(),
		WallTime:  time.Since(start),
	}

	switch reason.Load() {
	case reasonTimeout:
		res.TimedOut = true
	case reasonMemory:
		res.OomKilled = true
	case reasonCancel:
		res.Cancelled = true
	}

	var pollPeak int64
	if mw != nil {
		pollPeak = mw.Close()
		res.MemoryBestEffort = true
		// the child may die of the RLIMIT_AS backstop between polls;
		// a peak past the budget is a memory verdict either way
		if pollPeak > limits.MemoryBytes {
			res.OomKilled = true
		}
	}
	res.PeakMemoryBytes = peakMemoryBytes(cg, cmd.ProcessState, pollPeak)

	if cg != nil && cg.oomKilled() {
		res.OomKilled = true
	}

	res.ExitCode, res.ExitSignal = exitStatus(cmd.ProcessState, waitErr)

	return res, nil
}

func (s *linuxSandbox) sysProcAttr(c Command, cg *runCgroup) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if cg != nil {
		attr.UseCgroupFD = true
		attr.CgroupFD = cg.fd
	}

	flags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC)
	if !c.Network {
		flags |= syscall.CLONE_NEWNET
	}
	if os.Geteuid() != 0 {
		flags |= syscall.CLONE_NEWUSER
		attr.GidMappingsEnableSetgroups = false
		attr.UidMappings = []syscall.SysProcIDMap{{
			ContainerID: 0,
			HostID:      os.Getuid(),
			Size:        1,
		}}
		attr.GidMappings = []syscall.SysProcIDMap{{
			ContainerID: 0,
			HostID:      os.Getgid(),
			Size:        1,
		}}
	}
	attr.Cloneflags = flags
	return attr
}

// memRlimitMargin is the headroom between the declared memory budget
// and the RLIMIT_AS backstop on the fallback path. The poller watches
// the budget itself; the rlimit sits above it so an over-budget child
// is observed and classified before allocations start failing inside it.
const memRlimitMargin = 256 << 20

// applyRlimits is the fallback ceiling when no cgroup is available. The
// limits land right after spawn, so a hostile child has a sub-millisecond
// head start; that is why this path is documented as best-effort.
func applyRlimits(pid int, limits Limits) {
	if limits.MemoryBytes > 0 {
		mem := uint64(limits.MemoryBytes + memRlimitMargin)
		_ = unix.Prlimit(pid, unix.RLIMIT_AS, &unix.Rlimit{Cur: mem, Max: mem}, nil)
	}
	_ = unix.Prlimit(pid, unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}, nil)
	_ = unix.Prlimit(pid, unix.RLIMIT_NPROC, &unix.Rlimit{Cur: 256, Max: 256}, nil)
}

// terminator owns the kill sequence for one process tree: SIGTERM to
// the group first, escalate to SIGKILL (and cgroup.kill) after a grace
// period. Safe to trigger from multiple goroutines; only the first wins.
type terminator struct {
	once  sync.Once
	pgid  int
	cg    *runCgroup
	grace time.Duration
}

func (t *terminator) kill() {
	t.once.Do(func() {
		_ = syscall.Kill(-t.pgid, syscall.SIGTERM)
		go func() {
			time.Sleep(t.grace)
			_ = syscall.Kill(-t.pgid, syscall.SIGKILL)
			if t.cg != nil {
				_ = t.cg.kill()
			}
		}()
	})
}

func peakMemoryBytes(cg *runCgroup, state *os.ProcessState, pollPeak int64) int64 {
	if cg != nil {
		if peak := cg.peakMemoryBytes(); peak > 0 {
			return peak
		}
	}
	peak := pollPeak
	if state != nil {
		if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
			// ru_maxrss is in KiB on linux
			if rss := usage.Maxrss * 1024; rss > peak {
				peak = rss
			}
		}
	}
	return peak
}

func exitStatus(state *os.ProcessState, waitErr error) (code *int64, signal *int64) {
	if state == nil {
		return nil, nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		if ws.Exited() {
			c := int64(ws.ExitStatus())
			return &c, nil
		}
		if ws.Signaled() {
			s := int64(ws.Signal())
			return nil, &s
		}
	}
	if waitErr == nil {
		c := int64(0)
		return &c, nil
	}
	return nil, nil
}

func usernsEnabled() bool {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// knob absent means user namespaces are unconditionally on
		return true
	}
	return len(data) > 0 && data[0] == '1'
}
