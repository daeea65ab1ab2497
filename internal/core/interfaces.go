// Package core declares the contracts between the coordinator and the
// transport adapters. It stays dependency-free on purpose: adapters own
// the libraries.
package core

// Frame is a single outbound wire message, already encoded.
type Frame []byte

// SessionID identifies one live transport-level link. Assigned by the
// adapter, unique per link, never reused while the link is open.
type SessionID string

// Conn abstracts a live client connection.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	ID() SessionID

	// TrySend queues a frame without blocking. Delivery is best-effort:
	// a full send buffer or closed connection returns an error and the
	// frame is dropped for this receiver only.
	TrySend(Frame) error

	Close()
}
