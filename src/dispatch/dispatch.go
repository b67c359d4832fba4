// Package dispatch routes a decoded envelope to the handler registered for
// its msg_type. It carries no protocol logic of its own; it exists so the
// node runtime's receive path is a single table lookup instead of a type
// switch that grows with every new msg_type.
package dispatch

import (
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
)

// Handler processes one decoded envelope received from addr.
type Handler func(addr string, env *envelope.Envelope)

// Table maps msg_type to the handler responsible for it.
type Table struct {
	handlers map[envelope.MsgType]Handler
}

// New returns an empty dispatch Table.
func New() *Table {
	return &Table{handlers: make(map[envelope.MsgType]Handler)}
}

// Register installs the handler for msgType, overwriting any prior entry.
func (t *Table) Register(msgType envelope.MsgType, h Handler) {
	t.handlers[msgType] = h
}

// Dispatch runs the registered handler for env.MsgType, if any. It reports
// whether a handler was found, so the caller can log a recv_unknown_type
// event for msg_types that decode cleanly but have no registered behavior.
func (t *Table) Dispatch(addr string, env *envelope.Envelope) bool {
	h, ok := t.handlers[env.MsgType]
	if !ok {
		return false
	}
	h(addr, env)
	return true
}
