package api

import "time"

// MsgType is a message type for streaming progress events
type MsgType string

// Streaming message type constants
const (
	StartJobMsg   MsgType = "job_start"
	StartExecMsg  MsgType = "exec_start"
	FinishExecMsg MsgType = "exec_finish"
	FinishJobMsg  MsgType = "job_finish"
)

// Stream output size constraints; the hard max_output_bytes budget is
// enforced separately by the sandbox, these only bound transport payloads.
const (
	MaxStreamOutputHeight = 40
	MaxStreamOutputWidth  = 80
)

// Header is the common header for all streaming event messages
type Header struct {
	ExecUuid string  `json:"exec_uuid"`
	MsgType  MsgType `json:"msg_type"`
}

// StartJob message sent when a request is accepted
type StartJob struct {
	Header
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

// StartExec message sent when the child process is spawned
type StartExec struct {
	Header
	Runtime string `json:"runtime"`
}

// FinishExec message sent when the child process exits or is terminated
type FinishExec struct {
	Header
	Result *ExecResult `json:"result"`
}

// FinishJob message sent when the final result has been assembled
type FinishJob struct {
	Header
	ErrorMessage *string `json:"error_message"`
}

// Helper function to create a header
func NewHeader(execUuid string, msgType MsgType) Header {
	return Header{
		ExecUuid: execUuid,
		MsgType:  msgType,
	}
}

func NewStartJob(execUuid, systemInfo string) StartJob {
	return StartJob{
		Header:      NewHeader(execUuid, StartJobMsg),
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartExec(execUuid, runtime string) StartExec {
	return StartExec{
		Header:  NewHeader(execUuid, StartExecMsg),
		Runtime: runtime,
	}
}

func NewFinishExec(execUuid string, result *ExecResult) FinishExec {
	return FinishExec{
		Header: NewHeader(execUuid, FinishExecMsg),
		Result: result,
	}
}

func NewFinishJob(execUuid string, errorMessage *string) FinishJob {
	return FinishJob{
		Header:       NewHeader(execUuid, FinishJobMsg),
		ErrorMessage: errorMessage,
	}
}
