package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
)

// callEntry pairs call metadata with its broadcast group: the sessions that
// receive joined/left notifications for the call.
type callEntry struct {
	call    *domain.Call
	members map[core.SessionID]*Session
	byUser  map[domain.UserID]core.SessionID
}

// CallStore owns call lifetime. A call exists while at least one participant
// remains in its broadcast group, or while it is still pending its first
// join; draining the group to zero removes the record.
type CallStore struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*callEntry
}

func NewCallStore() *CallStore {
	return &CallStore{calls: make(map[domain.CallID]*callEntry)}
}

// CreateOrReplace inserts a call record, replacing any record with the same
// id (a group call re-dialed). Earlier joiners stay bound to the id, so the
// record is replaced but the broadcast group is carried over; replacing it
// too would silently cut them off from joined/left notifications.
func (s *CallStore) CreateOrReplace(call *domain.Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.calls[call.ID]; ok {
		s.calls[call.ID] = &callEntry{
			call:    call,
			members: prev.members,
			byUser:  prev.byUser,
		}
		log.Info().Str("module", "app.callstore").Str("call", string(call.ID)).
			Str("kind", string(call.Kind)).Str("initiator", string(call.Initiator)).
			Int("carried", len(prev.members)).Msg("call replaced, group carried over")
		return
	}
	s.calls[call.ID] = &callEntry{
		call:    call,
		members: make(map[core.SessionID]*Session),
		byUser:  make(map[domain.UserID]core.SessionID),
	}
	log.Info().Str("module", "app.callstore").Str("call", string(call.ID)).
		Str("kind", string(call.Kind)).Str("initiator", string(call.Initiator)).Msg("call created")
}

func (s *CallStore) Get(id domain.CallID) (*domain.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.calls[id]
	if !ok {
		return nil, false
	}
	return e.call, true
}

func (s *CallStore) SetState(id domain.CallID, state domain.CallState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calls[id]; ok {
		e.call.State = state
	}
}

// AddParticipant joins a session to the call's broadcast group. Reports
// false when the call is absent.
func (s *CallStore) AddParticipant(id domain.CallID, sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.calls[id]
	if !ok {
		return false
	}
	sid := sess.Conn.ID()
	e.members[sid] = sess
	e.byUser[sess.UserID] = sid
	return true
}

// RemoveParticipant drops a session from the group and reports the remaining
// group size. Draining the group to zero deletes the call record.
func (s *CallStore) RemoveParticipant(id domain.CallID, sid core.SessionID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.calls[id]
	if !ok {
		return 0, false
	}
	if m, ok := e.members[sid]; ok {
		delete(e.byUser, m.UserID)
	}
	delete(e.members, sid)
	remaining := len(e.members)
	if remaining == 0 {
		delete(s.calls, id)
		log.Info().Str("module", "app.callstore").Str("call", string(id)).Msg("call drained, record removed")
	}
	return remaining, true
}

func (s *CallStore) Delete(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[id]; ok {
		delete(s.calls, id)
		log.Info().Str("module", "app.callstore").Str("call", string(id)).Msg("call removed")
	}
}

// Members snapshots the broadcast group, excluding one session (pass "" to
// exclude nobody).
func (s *CallStore) Members(id domain.CallID, except core.SessionID) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.calls[id]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(e.members))
	for sid, m := range e.members {
		if sid == except {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *CallStore) MemberCount(id domain.CallID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.calls[id]
	if !ok {
		return 0
	}
	return len(e.members)
}

// CallInfo is a read-only view for the REST API (no transport fields).
type CallInfo struct {
	ID        domain.CallID    `json:"id"`
	Kind      domain.CallKind  `json:"kind"`
	State     domain.CallState `json:"state"`
	Initiator domain.UserID    `json:"initiator"`
	Joined    int              `json:"joined"`
}

func (s *CallStore) List() []CallInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CallInfo, 0, len(s.calls))
	for id, e := range s.calls {
		out = append(out, CallInfo{
			ID:        id,
			Kind:      e.call.Kind,
			State:     e.call.State,
			Initiator: e.call.Initiator,
			Joined:    len(e.members),
		})
	}
	return out
}
