package gatherer

import (
	"github.com/runbox/runbox/api"
)

// ResultGatherer receives progress events while a request is handled.
// Implementations publish them to a transport (SQS, NATS, terminal);
// sends are fire-and-forget and must never fail the execution itself.
type ResultGatherer interface {
	StartJob(systemInfo string)

	StartExec(runtime string)
	FinishExec(result *api.ExecResult)

	FinishJob(errMsg *string)
}

// Discard is a no-op gatherer for callers that only want the final
// ExecResult.
type Discard struct{}

func (Discard) StartJob(systemInfo string)        {}
func (Discard) StartExec(runtime string)          {}
func (Discard) FinishExec(result *api.ExecResult) {}
func (Discard) FinishJob(errMsg *string)          {}
