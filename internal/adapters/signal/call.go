package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/app"
	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
	"github.com/dkrush/signald/internal/protocol"
)

func (ctl *SignalWSController) handleStartCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.StartCall
	if !ctl.decode(conn, data, &p) {
		return
	}

	participants := make([]domain.UserID, 0, len(p.Participants))
	for _, id := range p.Participants {
		participants = append(participants, domain.UserID(id))
	}

	callID, err := ctl.Coord.StartCall(sid, domain.CallKind(p.Type), participants, domain.CallID(p.GroupID))
	switch {
	case errors.Is(err, app.ErrNotRegistered):
		ctl.sendError(conn, "not_registered")
		return
	case errors.Is(err, app.ErrRateLimited):
		ctl.sendError(conn, "rate_limited")
		return
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("start-call")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("call", string(callID)).Msg("start-call handled")
}

func (ctl *SignalWSController) handleJoinCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.JoinCall
	if !ctl.decode(conn, data, &p) {
		return
	}
	// p.UserID is advisory only; the coordinator uses the identity bound at
	// registration and never a client-asserted sender field.
	ctl.Coord.JoinCall(sid, domain.CallID(p.CallID))
}

func (ctl *SignalWSController) handleAcceptCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.AcceptCall
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Coord.AcceptCall(sid, domain.UserID(p.CallerID), p.Answer)
}

func (ctl *SignalWSController) handleRejectCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.RejectCall
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Coord.RejectCall(sid, domain.UserID(p.CallerID))
}

func (ctl *SignalWSController) handleSignalRelay(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.Signal
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Coord.Signal(sid, domain.UserID(p.To), p.Signal)
}

func (ctl *SignalWSController) handleEndCall(sid core.SessionID) {
	ctl.Coord.EndCall(sid)
}
