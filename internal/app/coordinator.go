package app

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
	"github.com/dkrush/signald/internal/protocol"
)

var (
	ErrNotRegistered = errors.New("sender not registered")
	ErrRateLimited   = errors.New("call rate limit exceeded")
)

// Coordinator is the protocol state machine. Every inbound event lands here;
// it resolves identities through the registry, drives call store transitions
// and fans events out to the resolved connections. A single mutex serializes
// all event handling, so the registry and store are never mutated by two
// events at once even though many connections read in parallel.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	calls    *CallStore
	relay    *Relay
	limiter  *CallRateLimiter

	sessions map[core.SessionID]*Session
}

// NewCoordinator wires the coordinator over its stores. limiter may be nil
// to disable call rate limiting.
func NewCoordinator(registry *Registry, calls *CallStore, limiter *CallRateLimiter) *Coordinator {
	return &Coordinator{
		registry: registry,
		calls:    calls,
		relay:    NewRelay(registry),
		limiter:  limiter,
		sessions: make(map[core.SessionID]*Session),
	}
}

// OnConnect creates the session context for a fresh connection:
// unregistered, unbound.
func (c *Coordinator) OnConnect(conn core.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conn.ID()] = &Session{Conn: conn}
	log.Info().Str("module", "app.coordinator").Str("sid", string(conn.ID())).Msg("connection attached")
}

// Register binds a user identity to the connection. Idempotent; registering
// the same id from another connection supersedes the old binding.
func (c *Coordinator) Register(sid core.SessionID, userID domain.UserID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok {
		return
	}
	sess.UserID = userID
	sess.UserName = userName
	c.registry.Register(sess)
}

// StartCall creates (or replaces, for pre-established group ids) a pending
// call, invites every reachable participant and joins the initiator to the
// broadcast group. Unreachable invitees are skipped without error.
func (c *Coordinator) StartCall(sid core.SessionID, kind domain.CallKind, participants []domain.UserID, groupID domain.CallID) (domain.CallID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok || sess.UserID == "" {
		return "", ErrNotRegistered
	}
	if c.limiter != nil && !c.limiter.Allow(sess.UserID) {
		log.Warn().Str("module", "app.coordinator").Str("user", string(sess.UserID)).Msg("start-call rate limited")
		return "", ErrRateLimited
	}

	callID := groupID
	if callID == "" {
		callID = domain.NewCallID()
	}

	if sess.CallID != "" && sess.CallID != callID {
		c.leaveCall(sess)
	}

	c.calls.CreateOrReplace(domain.NewCall(callID, kind, sess.UserID, participants))

	for _, pid := range participants {
		if pid == sess.UserID {
			continue
		}
		target, ok := c.registry.Resolve(pid)
		if !ok {
			log.Debug().Str("module", "app.coordinator").Str("call", string(callID)).
				Str("invitee", string(pid)).Msg("invitee unreachable, skipped")
			continue
		}
		c.send(target, protocol.EventIncomingCall, protocol.IncomingCall{
			Type:       string(kind),
			Caller:     string(sess.UserID),
			CallerName: sess.UserName,
			CallID:     string(callID),
		})
	}

	c.calls.AddParticipant(callID, sess)
	sess.CallID = callID

	log.Info().Str("module", "app.coordinator").Str("call", string(callID)).
		Str("user", string(sess.UserID)).Int("invited", len(participants)).Msg("call started")
	return callID, nil
}

// JoinCall adds the sender to an existing call's broadcast group and tells
// the rest of the group. A join for an unknown or already-removed call is
// dropped; the joiner gets no response (the client applies its own timeout).
func (c *Coordinator) JoinCall(sid core.SessionID, callID domain.CallID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok {
		return
	}
	if sess.UserID == "" {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("join-call from unregistered connection, dropping")
		return
	}
	if _, ok := c.calls.Get(callID); !ok {
		log.Warn().Str("module", "app.coordinator").Str("call", string(callID)).
			Str("user", string(sess.UserID)).Msg("join-call for unknown call, dropping")
		return
	}

	if sess.CallID != "" && sess.CallID != callID {
		c.leaveCall(sess)
	}

	c.calls.AddParticipant(callID, sess)
	sess.CallID = callID
	c.calls.SetState(callID, domain.CallActive)

	for _, m := range c.calls.Members(callID, sid) {
		c.send(m, protocol.EventUserJoinedCall, protocol.UserJoinedCall{
			UserID:   string(sess.UserID),
			UserName: sess.UserName,
		})
	}
	log.Info().Str("module", "app.coordinator").Str("call", string(callID)).
		Str("user", string(sess.UserID)).Msg("joined call")
}

// AcceptCall delivers the answer payload to the caller's connection only.
func (c *Coordinator) AcceptCall(sid core.SessionID, callerID domain.UserID, answer json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok || sess.UserID == "" {
		return
	}
	caller, ok := c.registry.Resolve(callerID)
	if !ok {
		log.Debug().Str("module", "app.coordinator").Str("caller", string(callerID)).
			Msg("accept-call: caller unreachable, dropping")
		return
	}
	c.send(caller, protocol.EventCallAccepted, protocol.CallAccepted{
		CallerID: string(sess.UserID),
		Answer:   answer,
	})
}

// RejectCall notifies the caller and nothing else. The pending call record
// is intentionally untouched: reject is a pure notification, and the record
// still drains to zero through the usual leave paths.
func (c *Coordinator) RejectCall(sid core.SessionID, callerID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok || sess.UserID == "" {
		return
	}
	caller, ok := c.registry.Resolve(callerID)
	if !ok {
		log.Debug().Str("module", "app.coordinator").Str("caller", string(callerID)).
			Msg("reject-call: caller unreachable, dropping")
		return
	}
	c.send(caller, protocol.EventCallRejected, protocol.CallRejected{
		CallerID: string(sess.UserID),
	})
}

// Signal forwards an opaque negotiation payload to a named user, with the
// sender's bound identity attached.
func (c *Coordinator) Signal(sid core.SessionID, to domain.UserID, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok || sess.UserID == "" {
		return
	}
	c.relay.Relay(sess.UserID, to, payload)
}

// EndCall removes the sender from its bound call; a no-op without one.
func (c *Coordinator) EndCall(sid core.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok || sess.CallID == "" {
		return
	}
	c.leaveCall(sess)
}

// OnDisconnect releases every binding held by the connection. This path
// always runs on transport loss, whatever state the handlers left behind,
// and affects no other connection.
func (c *Coordinator) OnDisconnect(sid core.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sid]
	if !ok {
		return
	}
	c.registry.Unregister(sess)
	if sess.CallID != "" {
		c.leaveCall(sess)
	}
	delete(c.sessions, sid)
	log.Info().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("connection detached")
}

// leaveCall broadcasts the departure, removes the member, and deletes the
// call once one or no participants remain. Caller holds c.mu.
func (c *Coordinator) leaveCall(sess *Session) {
	callID := sess.CallID
	sid := sess.Conn.ID()

	for _, m := range c.calls.Members(callID, sid) {
		c.send(m, protocol.EventUserLeftCall, protocol.UserLeftCall{UserID: string(sess.UserID)})
	}

	remaining, existed := c.calls.RemoveParticipant(callID, sid)
	if existed && remaining <= 1 {
		c.calls.Delete(callID)
	}
	sess.CallID = ""
	log.Info().Str("module", "app.coordinator").Str("call", string(callID)).
		Str("user", string(sess.UserID)).Int("remaining", remaining).Msg("left call")
}

// send encodes and fires one outbound event. Best-effort: a full buffer or
// closed connection drops the frame for that receiver only.
func (c *Coordinator) send(sess *Session, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("event", event).Msg("encode event")
		return
	}
	if err := sess.Conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("event", event).
			Str("sid", string(sess.Conn.ID())).Msg("send dropped")
	}
}
