package api

// ExecReq is a request to execute a snippet of code inside the sandbox.
type ExecReq struct {
	ExecUuid  string `json:"exec_uuid"`
	ResSqsUrl string `json:"res_sqs_url,omitempty"`

	Code    string `json:"code"`
	Runtime string `json:"runtime"`

	// Input is piped to the process on stdin.
	Input *string `json:"input,omitempty"`

	// SeedFiles are materialized into the working directory before the
	// process starts.
	SeedFiles []SeedFile `json:"seed_files,omitempty"`

	Limits Limits `json:"limits"`

	// Network opts the execution into outbound network access.
	// Default is deny.
	Network bool `json:"network,omitempty"`
}

// SeedFile is a file placed in the working directory. Either Content or
// Url must be set; Url downloads require Sha256 for cache addressing and
// integrity.
type SeedFile struct {
	Path    string  `json:"path"`
	Content *string `json:"content,omitempty"`
	Sha256  *string `json:"sha256,omitempty"`
	Url     *string `json:"url,omitempty"`
}

// Limits is the caller-declared resource budget for one execution.
// All fields must be positive; the host clamps them to its own ceilings.
type Limits struct {
	TimeoutSec     int   `json:"timeout_seconds"`
	MaxMemoryBytes int64 `json:"max_memory_bytes"`
	MaxOutputBytes int64 `json:"max_output_bytes"`
}
