package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewHostReturns(t *testing.T) {
	t.Setenv("RUNBOX_DATA_DIR", t.TempDir())

	type outcome struct {
		h   *host
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		h, err := newHost("")
		done <- outcome{h: h, err: err}
	}()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.NotNil(t, out.h.runner)
		require.NotNil(t, out.h.pool)
	case <-time.After(5 * time.Second):
		t.Fatal("newHost did not return")
	}
}
