//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// memWatcher is the best-effort fallback when no hard memory ceiling is
// available. It samples VmHWM of the direct child at a fixed interval
// and fires onBreach when the ceiling is crossed. A fast allocation can
// overshoot between samples, so a breach detected here is approximate.
type memWatcher struct {
	pid      int
	limit    int64
	interval time.Duration
	onBreach func()

	stop chan struct{}
	done chan struct{}

	peak int64
}

func watchMemory(pid int, limit int64, interval time.Duration, onBreach func()) *memWatcher {
	w := &memWatcher{
		pid:      pid,
		limit:    limit,
		interval: interval,
		onBreach: onBreach,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *memWatcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			hwm, err := readVmHWM(w.pid)
			if err != nil {
				// process already gone
				return
			}
			if hwm > w.peak {
				w.peak = hwm
			}
			if w.limit > 0 && hwm > w.limit {
				w.onBreach()
				return
			}
		}
	}
}

// Close stops the watcher and returns the highest sample observed.
func (w *memWatcher) Close() int64 {
	close(w.stop)
	<-w.done
	return w.peak
}

func readVmHWM(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("VmHWM not found in /proc/%d/status", pid)
}
