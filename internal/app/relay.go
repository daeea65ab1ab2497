package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/domain"
	"github.com/dkrush/signald/internal/protocol"
)

// Relay forwards opaque negotiation payloads to the connection of a named
// target user. The sender identity is attached server-side; the payload is
// never parsed. Unreachable targets are dropped without error: the
// negotiation protocol above us owns retry and timeout.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

func (rl *Relay) Relay(from, to domain.UserID, payload json.RawMessage) {
	target, ok := rl.registry.Resolve(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).
			Msg("target unreachable, dropping signal")
		return
	}
	frame, err := protocol.Encode(protocol.EventSignal, protocol.SignalOut{
		From:   string(from),
		Signal: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode signal")
		return
	}
	if err := target.Conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("to", string(to)).Msg("send signal dropped")
	}
}
