package sqsgath

import (
	"strings"
	"testing"

	"github.com/runbox/runbox/api"
	"github.com/stretchr/testify/require"
)

func TestTrimStrToRect(t *testing.T) {
	require.Equal(t, "", trimStrToRect("", 2, 10))
	require.Equal(t, "abc", trimStrToRect("abc", 2, 10))

	long := strings.Repeat("x", 15)
	require.Equal(t, strings.Repeat("x", 10)+"[...]", trimStrToRect(long, 2, 10))

	tall := "a\nb\nc\nd"
	require.Equal(t, "a\nb\n[...]", trimStrToRect(tall, 2, 10))
}

func TestTrimResultOutput(t *testing.T) {
	require.Nil(t, trimResultOutput(nil, 2, 10))

	res := &api.ExecResult{
		ExecUuid: "u",
		Status:   api.StatusOk,
		Stdout:   strings.Repeat("x", 100),
		Stderr:   "short",
	}
	trimmed := trimResultOutput(res, 2, 10)
	require.Equal(t, strings.Repeat("x", 10)+"[...]", trimmed.Stdout)
	require.Equal(t, "short", trimmed.Stderr)
	require.Equal(t, api.StatusOk, trimmed.Status)

	// the original result stays intact
	require.Len(t, res.Stdout, 100)
}
