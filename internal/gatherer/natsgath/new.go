package natsgath

import (
	"github.com/nats-io/nats.go"
)

// New creates a NATS gatherer that streams progress events to the
// given inbox subject.
func New(nc *nats.Conn, execUuid string, inbox string) *natsGatherer {
	return &natsGatherer{
		nc:       nc,
		inbox:    inbox,
		execUuid: execUuid,
	}
}
