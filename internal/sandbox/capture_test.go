package sandbox

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureUnderLimit(t *testing.T) {
	c := newCapture(1024, func() { t.Fatal("breach callback fired under limit") })

	err := c.drain(strings.NewReader("hello stdout\n"), &c.stdout)
	require.NoError(t, err)
	err = c.drain(strings.NewReader("hello stderr\n"), &c.stderr)
	require.NoError(t, err)

	require.Equal(t, "hello stdout\n", string(c.Stdout()))
	require.Equal(t, "hello stderr\n", string(c.Stderr()))
	require.False(t, c.Truncated())
}

func TestCaptureExactBudgetIsNotTruncated(t *testing.T) {
	var breaches atomic.Int32
	c := newCapture(14, func() { breaches.Add(1) })

	err := c.drain(strings.NewReader("Hello, World!\n"), &c.stdout)
	require.NoError(t, err)

	require.Equal(t, "Hello, World!\n", string(c.Stdout()))
	require.False(t, c.Truncated())
	require.Equal(t, int32(0), breaches.Load())

	// the budget is now spent, one more byte breaches it
	require.True(t, c.write(&c.stderr, []byte("x")))
	require.True(t, c.Truncated())
	require.Empty(t, c.Stderr())
	require.Equal(t, int32(1), breaches.Load())
}

func TestCaptureCombinedBudget(t *testing.T) {
	var breaches atomic.Int32
	c := newCapture(10, func() { breaches.Add(1) })

	require.False(t, c.write(&c.stdout, []byte("12345")))
	require.True(t, c.write(&c.stderr, []byte("6789AB")))

	require.True(t, c.Truncated())
	require.Equal(t, int32(1), breaches.Load())
	require.LessOrEqual(t, len(c.Stdout())+len(c.Stderr()), 10)
}

func TestCaptureDiscardsAfterBreach(t *testing.T) {
	c := newCapture(4, nil)

	err := c.drain(strings.NewReader(strings.Repeat("x", 1<<20)), &c.stdout)
	require.NoError(t, err)

	require.True(t, c.Truncated())
	require.Equal(t, "xxxx", string(c.Stdout()))
}

func TestCaptureBreachFiresOnce(t *testing.T) {
	var breaches atomic.Int32
	c := newCapture(1, func() { breaches.Add(1) })

	var buf bytes.Buffer
	c.write(&buf, []byte("aa"))
	c.write(&buf, []byte("bb"))
	c.write(&buf, []byte("cc"))

	require.Equal(t, int32(1), breaches.Load())
}
