package api

// Status is the authoritative outcome classification of an execution,
// independent of the child's own exit code.
type Status string

const (
	StatusOk                 Status = "ok"
	StatusTimedOut           Status = "timed-out"
	StatusMemoryExceeded     Status = "memory-exceeded"
	StatusOutputTruncated    Status = "output-truncated"
	StatusCrashed            Status = "crashed"
	StatusRejected           Status = "rejected"
	StatusSandboxUnavailable Status = "sandbox-unavailable"
	StatusCancelled          Status = "cancelled"
)

// ExecResult is the terminal record of one execution. It is produced
// exactly once per request and is immutable afterwards.
type ExecResult struct {
	ExecUuid string `json:"exec_uuid"`

	Status Status `json:"status"`

	// ExitCode is the runtime-specific exit code passed through verbatim.
	// Nil when the process never exited on its own (timeout, oom kill).
	ExitCode   *int64 `json:"exit_code,omitempty"`
	ExitSignal *int64 `json:"exit_signal,omitempty"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	ElapsedMs int64 `json:"elapsed_ms"`

	// PeakMemoryBytes is best-effort when hard enforcement is unavailable.
	PeakMemoryBytes *int64 `json:"peak_memory_bytes,omitempty"`

	// ErrorMessage carries detail for rejected and sandbox-unavailable.
	ErrorMessage *string `json:"error_message,omitempty"`

	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
}
