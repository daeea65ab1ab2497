package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
)

// Registry is the single source of truth for "is user X reachable right
// now": a bidirectional mapping between user ids and live sessions.
// At most one session per user id; a later registration supersedes an
// earlier one (reconnect and multi-device both land here).
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*Session
	byConn map[core.SessionID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]*Session),
		byConn: make(map[core.SessionID]domain.UserID),
	}
}

// Register binds the session's user id to it, replacing any prior binding.
// The superseded connection is left open but is no longer reachable by id.
func (r *Registry) Register(sess *Session) {
	uid := sess.UserID
	sid := sess.Conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection re-registering under a new id releases the old one;
	// otherwise the old entry would outlive the connection.
	if prevUID, ok := r.byConn[sid]; ok && prevUID != uid {
		if cur, ok := r.byUser[prevUID]; ok && cur.Conn.ID() == sid {
			delete(r.byUser, prevUID)
		}
		log.Info().Str("module", "app.registry").Str("user", string(prevUID)).
			Str("new_user", string(uid)).Str("sid", string(sid)).Msg("identity rebound")
	}

	if prev, ok := r.byUser[uid]; ok && prev.Conn.ID() != sid {
		delete(r.byConn, prev.Conn.ID())
		log.Info().Str("module", "app.registry").Str("user", string(uid)).
			Str("old_sid", string(prev.Conn.ID())).Str("sid", string(sid)).
			Msg("registration superseded")
	}
	r.byUser[uid] = sess
	r.byConn[sid] = uid
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("sid", string(sid)).Msg("registered")
}

// Resolve returns the live session for a user, if any.
func (r *Registry) Resolve(uid domain.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byUser[uid]
	return sess, ok
}

// Unregister removes the entry whose bound connection equals the given
// session's connection; a no-op otherwise. Disconnect may race with a fresh
// registration for the same user from a different connection, so only an
// exact connection match is evicted.
func (r *Registry) Unregister(sess *Session) {
	sid := sess.Conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.byConn[sid]
	if !ok {
		return
	}
	delete(r.byConn, sid)
	if cur, ok := r.byUser[uid]; ok && cur.Conn.ID() == sid {
		delete(r.byUser, uid)
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("sid", string(sid)).Msg("unregistered")
	}
}

// Users snapshots the currently registered user ids for the REST API.
func (r *Registry) Users() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.byUser))
	for uid := range r.byUser {
		out = append(out, uid)
	}
	return out
}
