package sandbox

import (
	"bytes"
	"io"
	"sync"
)

// capture drains the stdout and stderr streams of a running process
// without ever letting an unread pipe block the child. Both streams
// share one combined byte budget; the first write that would exceed it
// marks the capture truncated and fires the kill callback once.
type capture struct {
	mu        sync.Mutex
	limit     int64
	used      int64
	truncated bool
	onBreach  func()

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCapture(limit int64, onBreach func()) *capture {
	return &capture{limit: limit, onBreach: onBreach}
}

// write appends p to dst up to the remaining combined budget. It
// reports whether the budget has been exhausted.
func (c *capture) write(dst *bytes.Buffer, p []byte) bool {
	c.mu.Lock()

	if c.truncated {
		c.mu.Unlock()
		return true
	}

	remaining := c.limit - c.used
	if int64(len(p)) > remaining {
		dst.Write(p[:remaining])
		c.used = c.limit
		c.truncated = true
		c.mu.Unlock()
		if c.onBreach != nil {
			c.onBreach()
		}
		return true
	}

	dst.Write(p)
	c.used += int64(len(p))
	c.mu.Unlock()
	return false
}

// drain reads r until EOF. Once the budget is exhausted further bytes
// are discarded; draining continues so the child never stalls on a
// full pipe between the breach and its termination.
func (c *capture) drain(r io.Reader, dst *bytes.Buffer) error {
	buf := make([]byte, 32*1024)
	discarding := false
	for {
		n, err := r.Read(buf)
		if n > 0 && !discarding {
			discarding = c.write(dst, buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *capture) Stdout() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.Bytes()
}

func (c *capture) Stderr() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stderr.Bytes()
}

func (c *capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
