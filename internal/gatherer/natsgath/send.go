package natsgath

import (
	"encoding/json"
	"log/slog"
)

func (s *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal message", "error", err)
		return
	}

	if err := s.nc.Publish(s.inbox, b); err != nil {
		slog.Error("failed to publish message to NATS", "error", err, "inbox", s.inbox)
	}
}
