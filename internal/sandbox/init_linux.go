//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// The confinement stage runs as the first process inside the new
// namespaces: it swaps the filesystem root for a private one holding
// only read-only system directories and the working directory, then
// execs the real command. It is entered by re-executing the host
// binary with these environment markers set.
const (
	initFlagEnv = "RUNBOX_SANDBOX_INIT"
	initBoxEnv  = "RUNBOX_SANDBOX_BOX"
)

// Init hijacks the process when it was re-executed as the confinement
// stage of a sandboxed run. It must be called before anything else in
// main (and in TestMain of packages that spawn the sandbox). In a
// normal process it returns immediately; in the confinement stage it
// never returns.
func Init() {
	if os.Getenv(initFlagEnv) != "1" {
		return
	}
	if err := initChild(); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox init: %v\n", err)
		os.Exit(125)
	}
}

func initChild() error {
	boxDir := os.Getenv(initBoxEnv)
	argv := os.Args[1:]
	if boxDir == "" || len(argv) == 0 {
		return fmt.Errorf("box dir and command are required")
	}
	if err := os.Unsetenv(initFlagEnv); err != nil {
		return err
	}
	if err := os.Unsetenv(initBoxEnv); err != nil {
		return err
	}

	if err := setupRootfs(boxDir); err != nil {
		return err
	}

	cmdPath, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, argv, os.Environ())
}

// setupRootfs builds the private root: a tmpfs with the host system
// directories bound read-only, the working directory bound read-write
// at /box, fresh /proc and /tmp, and a minimal /dev. pivot_root then
// detaches the old root entirely, so nothing outside the working
// directory is reachable for writing and sibling runs are not
// reachable at all.
func setupRootfs(boxDir string) error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make mount private: %w", err)
	}

	newroot := filepath.Join(boxDir, ".rootfs")
	if err := os.MkdirAll(newroot, 0755); err != nil {
		return fmt.Errorf("mkdir rootfs: %w", err)
	}
	if err := unix.Mount("tmpfs", newroot, "tmpfs", 0, "mode=0755"); err != nil {
		return fmt.Errorf("mount rootfs tmpfs: %w", err)
	}

	for _, dir := range []string{"/usr", "/bin", "/sbin", "/lib", "/lib32", "/lib64", "/etc", "/opt"} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		target := filepath.Join(newroot, dir)
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("mkdir mount target: %w", err)
		}
		if err := unix.Mount(dir, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", dir, err)
		}
		// read-only remount can fail on kernels that lock mount flags
		// inside user namespaces; the bind alone still bounds the view
		_ = unix.Mount("", target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, "")
	}

	// the working directory is the only writable host path. The bind is
	// non-recursive, so the tmpfs under .rootfs does not reappear inside.
	boxTarget := filepath.Join(newroot, "box")
	if err := os.MkdirAll(boxTarget, 0755); err != nil {
		return fmt.Errorf("mkdir box target: %w", err)
	}
	if err := unix.Mount(boxDir, boxTarget, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mount box: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(newroot, "tmp"), 0755); err != nil {
		return fmt.Errorf("mkdir tmp: %w", err)
	}
	if err := os.Chmod(filepath.Join(newroot, "tmp"), 0777|os.ModeSticky); err != nil {
		return fmt.Errorf("chmod tmp: %w", err)
	}

	if err := setupDev(newroot); err != nil {
		return err
	}

	procTarget := filepath.Join(newroot, "proc")
	if err := os.MkdirAll(procTarget, 0755); err != nil {
		return fmt.Errorf("mkdir proc: %w", err)
	}
	if err := unix.Mount("proc", procTarget, "proc", 0, ""); err != nil {
		return fmt.Errorf("mount proc: %w", err)
	}

	oldroot := filepath.Join(newroot, ".old")
	if err := os.MkdirAll(oldroot, 0755); err != nil {
		return fmt.Errorf("mkdir old root: %w", err)
	}
	if err := unix.PivotRoot(newroot, oldroot); err != nil {
		return fmt.Errorf("pivot root: %w", err)
	}
	if err := os.Chdir("/box"); err != nil {
		return fmt.Errorf("chdir box: %w", err)
	}
	if err := unix.Unmount("/.old", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach old root: %w", err)
	}
	return os.Remove("/.old")
}

func setupDev(newroot string) error {
	devDir := filepath.Join(newroot, "dev")
	if err := os.MkdirAll(devDir, 0755); err != nil {
		return fmt.Errorf("mkdir dev: %w", err)
	}
	for _, name := range []string{"null", "zero", "full", "random", "urandom", "tty"} {
		source := filepath.Join("/dev", name)
		if _, err := os.Stat(source); err != nil {
			continue
		}
		target := filepath.Join(devDir, name)
		f, err := os.OpenFile(target, os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("create dev node target: %w", err)
		}
		_ = f.Close()
		if err := unix.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", source, err)
		}
	}
	return nil
}
