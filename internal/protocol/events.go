// Package protocol defines the closed set of events exchanged over the
// signaling socket. Negotiation payloads (offers, answers, candidate data)
// are json.RawMessage throughout: the server relays them verbatim and never
// looks inside.
package protocol

import "encoding/json"

// Client -> server events.
const (
	EventUserInfo   = "user-info"
	EventStartCall  = "start-call"
	EventJoinCall   = "join-call"
	EventAcceptCall = "accept-call"
	EventRejectCall = "reject-call"
	EventSignal     = "signal"
	EventEndCall    = "end-call"
	EventPing       = "ping"
)

// Server -> client events.
const (
	EventIncomingCall   = "incoming-call"
	EventUserJoinedCall = "user-joined-call"
	EventCallAccepted   = "call-accepted"
	EventCallRejected   = "call-rejected"
	EventUserLeftCall   = "user-left-call"
	EventPong           = "pong"
	EventError          = "error"
)

// Envelope frames every message in both directions: the event name plus an
// event-specific data object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Required fields carry validate tags; a payload failing
// validation is answered with an error event, never acted on.

type UserInfo struct {
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

type StartCall struct {
	Type         string   `json:"type" validate:"required,oneof=audio video"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
	GroupID      string   `json:"groupId,omitempty"`
}

type JoinCall struct {
	CallID   string `json:"callId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName,omitempty"`
}

type AcceptCall struct {
	CallerID string          `json:"callerId" validate:"required"`
	Answer   json.RawMessage `json:"answer" validate:"required"`
}

type RejectCall struct {
	CallerID string `json:"callerId" validate:"required"`
}

type Signal struct {
	To     string          `json:"to" validate:"required"`
	Signal json.RawMessage `json:"signal" validate:"required"`
}

// Outbound payloads.

type IncomingCall struct {
	Type       string `json:"type"`
	Caller     string `json:"caller"`
	CallerName string `json:"callerName"`
	CallID     string `json:"callId"`
}

type UserJoinedCall struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type CallAccepted struct {
	CallerID string          `json:"callerId"`
	Answer   json.RawMessage `json:"answer"`
}

type CallRejected struct {
	CallerID string `json:"callerId"`
}

type SignalOut struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type UserLeftCall struct {
	UserID string `json:"userId"`
}

type Error struct {
	Error string `json:"error"`
}

// Encode wraps data in an envelope and marshals the whole frame.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
