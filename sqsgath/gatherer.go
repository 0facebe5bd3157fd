package sqsgath

import (
	"github.com/runbox/runbox/api"
)

// StartJob implements gatherer.ResultGatherer.
func (s *sqsResQueueGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.execUuid, systemInfo))
}

// StartExec implements gatherer.ResultGatherer.
func (s *sqsResQueueGatherer) StartExec(runtime string) {
	s.send(api.NewStartExec(s.execUuid, runtime))
}

// FinishExec implements gatherer.ResultGatherer.
func (s *sqsResQueueGatherer) FinishExec(result *api.ExecResult) {
	msg := api.NewFinishExec(
		s.execUuid,
		trimResultOutput(result, api.MaxStreamOutputHeight, api.MaxStreamOutputWidth),
	)
	s.send(msg)
}

// FinishJob implements gatherer.ResultGatherer.
func (s *sqsResQueueGatherer) FinishJob(errMsg *string) {
	s.send(api.NewFinishJob(s.execUuid, errMsg))
}
