//go:build linux

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// the sandbox re-executes this binary as its confinement stage
func TestMain(m *testing.M) {
	Init()
	os.Exit(m.Run())
}

func testLimits() Limits {
	return Limits{
		WallTime:    10 * time.Second,
		MemoryBytes: 256 * 1024 * 1024,
		OutputBytes: 64 * 1024,
	}
}

// requireSandbox skips when the host cannot provide isolation, e.g.
// inside containers without user namespace support.
func requireSandbox(t *testing.T) Sandbox {
	t.Helper()
	return requireSandboxCfg(t, Config{CgroupRoot: t.TempDir() + "/nocgroup"})
}

func requireSandboxCfg(t *testing.T, cfg Config) Sandbox {
	t.Helper()
	sb := New(cfg)
	if err := sb.Verify(); err != nil {
		t.Skipf("sandbox not available: %v", err)
	}
	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "true"},
		Dir:  t.TempDir(),
	}, testLimits())
	if err != nil || res.ExitCode == nil || *res.ExitCode != 0 {
		t.Skipf("sandbox smoke run failed: %v %+v", err, res)
	}
	return sb
}

func TestRunEcho(t *testing.T) {
	sb := requireSandbox(t)

	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "echo Hello, World!"},
		Dir:  t.TempDir(),
	}, testLimits())
	require.NoError(t, err)

	require.NotNil(t, res.ExitCode)
	require.Equal(t, int64(0), *res.ExitCode)
	require.Equal(t, "Hello, World!\n", string(res.Stdout))
	require.Empty(t, res.Stderr)
	require.False(t, res.TimedOut)
	require.False(t, res.Truncated)
}

func TestRunStdin(t *testing.T) {
	sb := requireSandbox(t)

	res, err := sb.Run(context.Background(), Command{
		Argv:  []string{"/bin/cat"},
		Dir:   t.TempDir(),
		Stdin: strings.NewReader("piped input"),
	}, testLimits())
	require.NoError(t, err)

	require.Equal(t, "piped input", string(res.Stdout))
}

func TestRunWallTimeout(t *testing.T) {
	sb := requireSandbox(t)

	limits := testLimits()
	limits.WallTime = 500 * time.Millisecond

	start := time.Now()
	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sleep", "30"},
		Dir:  t.TempDir(),
	}, limits)
	require.NoError(t, err)

	require.True(t, res.TimedOut)
	require.Nil(t, res.ExitCode)
	// wall clock never exceeds the budget plus a small grace bound
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunOutputBudget(t *testing.T) {
	sb := requireSandbox(t)

	limits := testLimits()
	limits.OutputBytes = 1024

	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "while true; do echo aaaaaaaaaaaaaaaaaaaaaaaa; done"},
		Dir:  t.TempDir(),
	}, limits)
	require.NoError(t, err)

	require.True(t, res.Truncated)
	require.LessOrEqual(t, int64(len(res.Stdout))+int64(len(res.Stderr)), limits.OutputBytes)
}

func TestRunCancellation(t *testing.T) {
	sb := requireSandbox(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := sb.Run(ctx, Command{
		Argv: []string{"/bin/sleep", "30"},
		Dir:  t.TempDir(),
	}, testLimits())
	require.NoError(t, err)

	require.True(t, res.Cancelled)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunFilesystemConfinement(t *testing.T) {
	sb := requireSandbox(t)

	root := t.TempDir()
	box := filepath.Join(root, "box")
	sibling := filepath.Join(root, "sibling")
	require.NoError(t, os.MkdirAll(box, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))
	secret := filepath.Join(sibling, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("other request's data"), 0644))

	// host paths outside the working directory do not exist in the
	// child's root, neither for reading nor for planting files
	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "cat " + secret},
		Dir:  box,
	}, testLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	require.NotEqual(t, int64(0), *res.ExitCode)
	require.Empty(t, res.Stdout)

	res, err = sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "echo planted > " + filepath.Join(sibling, "planted.txt")},
		Dir:  box,
	}, testLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	require.NotEqual(t, int64(0), *res.ExitCode)
	_, statErr := os.Stat(filepath.Join(sibling, "planted.txt"))
	require.True(t, os.IsNotExist(statErr))

	// the working directory itself is mounted at /box and writable
	res, err = sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "pwd && echo kept > kept.txt"},
		Dir:  box,
	}, testLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	require.Equal(t, int64(0), *res.ExitCode)
	require.Equal(t, "/box\n", string(res.Stdout))
	kept, err := os.ReadFile(filepath.Join(box, "kept.txt"))
	require.NoError(t, err)
	require.Equal(t, "kept\n", string(kept))
}

func TestRunMemoryExceeded(t *testing.T) {
	sb := requireSandboxCfg(t, Config{
		CgroupRoot:      filepath.Join(t.TempDir(), "nocgroup"),
		MemPollInterval: 5 * time.Millisecond,
	})

	limits := testLimits()
	limits.MemoryBytes = 32 << 20

	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", `a=0123456789ABCDEF; while :; do a="$a$a"; done`},
		Dir:  t.TempDir(),
	}, limits)
	require.NoError(t, err)

	require.True(t, res.OomKilled)
	require.True(t, res.MemoryBestEffort)
	require.Greater(t, res.PeakMemoryBytes, limits.MemoryBytes)
}

func TestRunNetworkDenied(t *testing.T) {
	sb := requireSandbox(t)

	// with netns isolation there is no route to anywhere; the probe
	// must fail on its own, the sandbox call itself succeeds
	res, err := sb.Run(context.Background(), Command{
		Argv: []string{"/bin/sh", "-c", "cat /proc/net/route | wc -l"},
		Dir:  t.TempDir(),
	}, testLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	// header line only, no routes in a fresh namespace
	require.Equal(t, "1\n", string(res.Stdout))
}
