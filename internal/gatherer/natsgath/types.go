package natsgath

import (
	"github.com/nats-io/nats.go"
	"github.com/runbox/runbox/api"
)

type natsGatherer struct {
	nc       *nats.Conn
	inbox    string
	execUuid string
}

// StartJob implements gatherer.ResultGatherer.
func (s *natsGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.execUuid, systemInfo))
}

// StartExec implements gatherer.ResultGatherer.
func (s *natsGatherer) StartExec(runtime string) {
	s.send(api.NewStartExec(s.execUuid, runtime))
}

// FinishExec implements gatherer.ResultGatherer.
func (s *natsGatherer) FinishExec(result *api.ExecResult) {
	msg := api.NewFinishExec(
		s.execUuid,
		trimResultStrings(result, api.MaxStreamOutputHeight, api.MaxStreamOutputWidth),
	)
	s.send(msg)
}

// FinishJob implements gatherer.ResultGatherer.
func (s *natsGatherer) FinishJob(errMsg *string) {
	s.send(api.NewFinishJob(s.execUuid, errMsg))
}

func trimResultStrings(res *api.ExecResult, ioHeight int, ioWidth int) *api.ExecResult {
	if res == nil {
		return nil
	}
	trimmed := *res
	trimmed.Stdout = trimStrToRect(res.Stdout, ioHeight, ioWidth)
	trimmed.Stderr = trimStrToRect(res.Stderr, ioHeight, ioWidth)
	return &trimmed
}
