package app

import (
	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
)

// Session is the coordinator-owned context attached to one live connection.
// Created on transport connect, destroyed on disconnect. UserID/UserName are
// set by user-info, CallID by start-call/join-call. Only the coordinator
// writes these fields.
type Session struct {
	Conn     core.Conn
	UserID   domain.UserID
	UserName string
	CallID   domain.CallID
}
