package behave

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/runbox/runbox/api"
)

// SpecSeedFile is a file placed into the working directory before the run
type SpecSeedFile struct {
	Path    string `toml:"path"`
	Content string `toml:"content"`
}

// SpecRequest represents a request block inside a scenario entry
type SpecRequest struct {
	Code      string         `toml:"code"`
	Runtime   string         `toml:"runtime"`
	Input     string         `toml:"input"`
	SeedFiles []SpecSeedFile `toml:"seed_files"`
	Limits    SpecLimits     `toml:"limits"`
	Network   bool           `toml:"network"`
}

// SpecLimits describes resource budgets for a scenario request
type SpecLimits struct {
	TimeoutSec     int   `toml:"timeout_seconds"`
	MaxMemoryBytes int64 `toml:"max_memory_bytes"`
	MaxOutputBytes int64 `toml:"max_output_bytes"`
}

// SpecExpect describes the expected outcome of a scenario
type SpecExpect struct {
	Status    string  `toml:"status"`
	Stdout    *string `toml:"stdout"`
	StderrHas *string `toml:"stderr_has"`
	ExitCode  *int64  `toml:"exit_code"`
}

// specSuite maps to [[scenarios]] entries. The request is written as an
// array-of-table in the example files, so we model it as a slice and
// use the first element.
type specSuite struct {
	Description string        `toml:"description"`
	RequestAOT  []SpecRequest `toml:"request"`
	Expect      SpecExpect    `toml:"expect"`
}

type specRoot struct {
	Suites []specSuite `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Request api.ExecReq
	Expect  SpecExpect
}

// Parse reads a behaviour TOML file and converts it to runnable cases
// using api.ExecReq
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Suites))
	for _, suite := range root.Suites {
		if len(suite.RequestAOT) == 0 {
			return nil, fmt.Errorf("scenario entry is missing request block")
		}
		reqSpec := suite.RequestAOT[0]

		if reqSpec.Code == "" || reqSpec.Runtime == "" {
			return nil, fmt.Errorf("scenario request incomplete; require code, runtime (scenario=%q)", suite.Description)
		}

		// Apply budgets with sensible defaults if not provided
		limits := api.Limits{
			TimeoutSec:     reqSpec.Limits.TimeoutSec,
			MaxMemoryBytes: reqSpec.Limits.MaxMemoryBytes,
			MaxOutputBytes: reqSpec.Limits.MaxOutputBytes,
		}
		if limits.TimeoutSec == 0 {
			limits.TimeoutSec = 5
		}
		if limits.MaxMemoryBytes == 0 {
			limits.MaxMemoryBytes = 256 << 20
		}
		if limits.MaxOutputBytes == 0 {
			limits.MaxOutputBytes = 1 << 20
		}

		seeds := make([]api.SeedFile, 0, len(reqSpec.SeedFiles))
		for _, sf := range reqSpec.SeedFiles {
			content := sf.Content
			seeds = append(seeds, api.SeedFile{
				Path:    sf.Path,
				Content: &content,
			})
		}

		execReq := api.ExecReq{
			ExecUuid:  uuid.NewString(),
			Code:      reqSpec.Code,
			Runtime:   reqSpec.Runtime,
			SeedFiles: seeds,
			Limits:    limits,
			Network:   reqSpec.Network,
		}
		if reqSpec.Input != "" {
			in := reqSpec.Input
			execReq.Input = &in
		}

		cases = append(cases, Case{
			Name:    suite.Description,
			Request: execReq,
			Expect:  suite.Expect,
		})
	}

	return cases, nil
}
