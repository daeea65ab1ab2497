package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
	"github.com/dkrush/signald/internal/protocol"
)

func (ctl *SignalWSController) handleUserInfo(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.UserInfo
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, err := domain.NewUser(domain.UserID(p.UserID), p.UserName); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid user info")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("user", p.UserID).Str("name", p.UserName).Msg("user registered")
	ctl.Coord.Register(sid, domain.UserID(p.UserID), p.UserName)
}

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, protocol.EventPong, nil)
}
