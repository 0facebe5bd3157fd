//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// runCgroup is an owned handle to one per-run cgroup v2 directory. The
// child is started inside it via clone3 CgroupFD, so there is no window
// where the code runs outside the memory and pid ceilings.
type runCgroup struct {
	path string
	fd   int
}

func createRunCgroup(root string, limits Limits) (*runCgroup, error) {
	if root == "" {
		return nil, fmt.Errorf("cgroup root is required")
	}
	path := filepath.Join(root, fmt.Sprintf("run-%d", time.Now().UnixNano()))
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cgroup dir: %w", err)
	}

	cg := &runCgroup{path: path, fd: -1}

	if err := cg.applyLimits(limits); err != nil {
		cg.remove()
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		cg.remove()
		return nil, fmt.Errorf("failed to open cgroup dir: %w", err)
	}
	cg.fd = fd

	return cg, nil
}

func (cg *runCgroup) applyLimits(limits Limits) error {
	if limits.MemoryBytes > 0 {
		if err := cg.write("memory.max", strconv.FormatInt(limits.MemoryBytes, 10)); err != nil {
			return err
		}
		// swap would let the process dodge the ceiling
		if err := cg.write("memory.swap.max", "0"); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := cg.write("pids.max", "256"); err != nil {
		return err
	}
	return nil
}

func (cg *runCgroup) write(name, value string) error {
	path := filepath.Join(cg.path, name)
	if err := os.WriteFile(path, []byte(value), 0640); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (cg *runCgroup) readInt(name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(cg.path, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// kill writes cgroup.kill, taking down the whole process tree including
// anything that escaped the process group.
func (cg *runCgroup) kill() error {
	return os.WriteFile(filepath.Join(cg.path, "cgroup.kill"), []byte("1"), 0600)
}

// peakMemoryBytes is read from memory.peak; zero when unsupported.
func (cg *runCgroup) peakMemoryBytes() int64 {
	val, err := cg.readInt("memory.peak")
	if err != nil {
		return 0
	}
	return val
}

// oomKilled reports whether the kernel oom-killed anything in this
// cgroup, read from memory.events.
func (cg *runCgroup) oomKilled() bool {
	data, err := os.ReadFile(filepath.Join(cg.path, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "oom_kill" {
			continue
		}
		val, _ := strconv.ParseInt(fields[1], 10, 64)
		return val > 0
	}
	return false
}

func (cg *runCgroup) remove() {
	if cg.fd >= 0 {
		_ = unix.Close(cg.fd)
		cg.fd = -1
	}
	// removal fails while member pids are still exiting
	for i := 0; i < 10; i++ {
		if err := os.Remove(cg.path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// cgroupUsable probes whether a writable cgroup v2 hierarchy with the
// memory controller is available at root. The probe creates and removes
// a real child cgroup since controller delegation only shows up there.
func cgroupUsable(root string) bool {
	if err := os.MkdirAll(root, 0750); err != nil {
		return false
	}
	// a plain writable directory would pass the probe below, so require
	// an actual cgroup2 filesystem first
	var fs unix.Statfs_t
	if err := unix.Statfs(root, &fs); err != nil || fs.Type != unix.CGROUP2_SUPER_MAGIC {
		return false
	}
	// best effort delegation of the controllers run cgroups need
	parent := filepath.Dir(root)
	_ = os.WriteFile(filepath.Join(parent, "cgroup.subtree_control"), []byte("+memory +pids"), 0640)
	_ = os.WriteFile(filepath.Join(root, "cgroup.subtree_control"), []byte("+memory +pids"), 0640)

	probe := filepath.Join(root, "probe")
	if err := os.MkdirAll(probe, 0750); err != nil {
		return false
	}
	defer os.Remove(probe)
	return os.WriteFile(filepath.Join(probe, "memory.max"), []byte("max"), 0640) == nil
}
