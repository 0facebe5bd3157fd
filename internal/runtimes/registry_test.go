package runtimes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	reg := NewRegistry()

	rt, ok := reg.Get("python3")
	require.True(t, ok)
	require.Equal(t, "main.py", rt.CodeFname)
	require.Equal(t, []string{"python3"}, rt.ExecCmd)

	require.True(t, reg.Has("bash"))
	require.False(t, reg.Has("cobol"))

	_, ok = reg.Get("cobol")
	require.False(t, ok)

	require.Contains(t, reg.IDs(), "node")
	require.Contains(t, reg.IDs(), "ruby")
}

func TestRegistryLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtimes.toml")
	content := `
[[runtimes]]
id = "python3"
name = "Python 3.12"
code_fname = "prog.py"
exec_cmd = ["python3.12", "-I"]

[[runtimes]]
id = "lua"
name = "Lua"
code_fname = "main.lua"
exec_cmd = ["lua"]
probe = 'print("Hello, World!")'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadFile(path))

	rt, ok := reg.Get("python3")
	require.True(t, ok)
	require.Equal(t, "prog.py", rt.CodeFname)
	require.Equal(t, []string{"python3.12", "-I"}, rt.ExecCmd)

	rt, ok = reg.Get("lua")
	require.True(t, ok)
	require.Equal(t, "main.lua", rt.CodeFname)

	require.True(t, reg.Has("node"))
}

func TestRegistryLoadFileRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtimes.toml")
	content := `
[[runtimes]]
id = "broken"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg := NewRegistry()
	require.Error(t, reg.LoadFile(path))
}

func TestRegistryLoadFileMissing(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.LoadFile(filepath.Join(t.TempDir(), "nope.toml")))
}
