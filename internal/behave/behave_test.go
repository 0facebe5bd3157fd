package behave

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseScenarios(t *testing.T) {
	path := writeScenarioFile(t, `
[[scenarios]]
description = "hello world on python"

[[scenarios.request]]
code = 'print("hi")'
runtime = "python3"
input = "ignored"

[scenarios.expect]
status = "ok"
stdout = "hi\n"
exit_code = 0

[[scenarios]]
description = "infinite loop times out"

[[scenarios.request]]
code = "while true; do :; done"
runtime = "bash"

[scenarios.request.limits]
timeout_seconds = 1

[scenarios.expect]
status = "timed-out"
`)

	cases, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	require.Equal(t, "hello world on python", cases[0].Name)
	require.Equal(t, "python3", cases[0].Request.Runtime)
	require.NotNil(t, cases[0].Request.Input)
	require.Equal(t, "ignored", *cases[0].Request.Input)
	require.NotEmpty(t, cases[0].Request.ExecUuid)
	require.Equal(t, "ok", cases[0].Expect.Status)
	require.NotNil(t, cases[0].Expect.Stdout)
	require.Equal(t, "hi\n", *cases[0].Expect.Stdout)
	require.NotNil(t, cases[0].Expect.ExitCode)
	require.Equal(t, int64(0), *cases[0].Expect.ExitCode)

	// defaults fill unset budgets
	require.Equal(t, 5, cases[0].Request.Limits.TimeoutSec)
	require.Equal(t, int64(256<<20), cases[0].Request.Limits.MaxMemoryBytes)
	require.Equal(t, int64(1<<20), cases[0].Request.Limits.MaxOutputBytes)

	require.Equal(t, 1, cases[1].Request.Limits.TimeoutSec)
	require.Equal(t, "timed-out", cases[1].Expect.Status)
}

func TestParseSeedFiles(t *testing.T) {
	path := writeScenarioFile(t, `
[[scenarios]]
description = "reads a data file"

[[scenarios.request]]
code = 'print(open("data.txt").read())'
runtime = "python3"

[[scenarios.request.seed_files]]
path = "data.txt"
content = "42"

[scenarios.expect]
status = "ok"
`)

	cases, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	require.Len(t, cases[0].Request.SeedFiles, 1)
	require.Equal(t, "data.txt", cases[0].Request.SeedFiles[0].Path)
	require.NotNil(t, cases[0].Request.SeedFiles[0].Content)
	require.Equal(t, "42", *cases[0].Request.SeedFiles[0].Content)
}

func TestParseRejectsIncomplete(t *testing.T) {
	path := writeScenarioFile(t, `
[[scenarios]]
description = "no request block"

[scenarios.expect]
status = "ok"
`)
	_, err := Parse(path)
	require.Error(t, err)

	path = writeScenarioFile(t, `
[[scenarios]]
description = "missing runtime"

[[scenarios.request]]
code = "x"

[scenarios.expect]
status = "ok"
`)
	_, err = Parse(path)
	require.Error(t, err)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
