package runtimes

import (
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pelletier/go-toml/v2"
)

// Runtime maps a declared runtime identifier to the interpreter that
// executes code submitted under it.
type Runtime struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`

	// CodeFname is the filename the snippet is written to inside the
	// working directory.
	CodeFname string `toml:"code_fname"`

	// ExecCmd is the argv invoking the interpreter; the code filename
	// is appended as the last argument.
	ExecCmd []string `toml:"exec_cmd"`

	// Probe is a hello-world snippet used by the health check.
	Probe string `toml:"probe"`
}

// Registry resolves runtime identifiers. Unknown identifiers are a
// request rejection, never a fallback to another interpreter.
type Registry struct {
	byID map[string]Runtime
	ids  mapset.Set[string]
}

func NewRegistry() *Registry {
	r := &Registry{
		byID: make(map[string]Runtime),
		ids:  mapset.NewSet[string](),
	}
	for _, rt := range builtin() {
		r.add(rt)
	}
	return r
}

func (r *Registry) add(rt Runtime) {
	r.byID[rt.ID] = rt
	r.ids.Add(rt.ID)
}

func (r *Registry) Get(id string) (Runtime, bool) {
	rt, ok := r.byID[id]
	return rt, ok
}

func (r *Registry) Has(id string) bool {
	return r.ids.Contains(id)
}

// IDs returns the known runtime identifiers in no particular order.
func (r *Registry) IDs() []string {
	return r.ids.ToSlice()
}

// LoadFile overlays runtimes from a TOML file on top of the builtin
// table. Entries with an existing id replace the builtin definition.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read runtimes file: %w", err)
	}

	var root struct {
		Runtimes []Runtime `toml:"runtimes"`
	}
	if err := toml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse runtimes TOML: %w", err)
	}

	for _, rt := range root.Runtimes {
		if rt.ID == "" || rt.CodeFname == "" || len(rt.ExecCmd) == 0 {
			return fmt.Errorf("runtime entry incomplete; require id, code_fname, exec_cmd (id=%q)", rt.ID)
		}
		r.add(rt)
	}
	return nil
}

func builtin() []Runtime {
	return []Runtime{
		{
			ID:        "python3",
			Name:      "Python 3",
			CodeFname: "main.py",
			ExecCmd:   []string{"python3"},
			Probe:     `print("Hello, World!")`,
		},
		{
			ID:        "node",
			Name:      "Node.js",
			CodeFname: "main.js",
			ExecCmd:   []string{"node"},
			Probe:     `console.log("Hello, World!");`,
		},
		{
			ID:        "bash",
			Name:      "Bash",
			CodeFname: "main.sh",
			ExecCmd:   []string{"bash"},
			Probe:     `echo "Hello, World!"`,
		},
		{
			ID:        "ruby",
			Name:      "Ruby",
			CodeFname: "main.rb",
			ExecCmd:   []string{"ruby"},
			Probe:     `puts "Hello, World!"`,
		},
	}
}
