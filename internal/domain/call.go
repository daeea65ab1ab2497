package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CallID string

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

type CallState string

const (
	// CallPending: the initiator started the call, no invitee has joined yet.
	CallPending CallState = "pending"
	// CallActive: at least one participant joined the broadcast group.
	CallActive CallState = "active"
)

// Call is one pending or in-progress call. Broadcast-group membership lives
// in the store, not here.
type Call struct {
	ID           CallID
	Kind         CallKind
	Participants []UserID // invited, in invitation order
	Initiator    UserID
	State        CallState
}

func NewCall(id CallID, kind CallKind, initiator UserID, participants []UserID) *Call {
	return &Call{
		ID:           id,
		Kind:         kind,
		Initiator:    initiator,
		Participants: participants,
		State:        CallPending,
	}
}

// NewCallID builds a timestamp-derived token for calls without a
// pre-established group id. The random suffix disambiguates calls started
// in the same millisecond.
func NewCallID() CallID {
	return CallID(fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]))
}
