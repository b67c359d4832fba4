// Package net provides the node's datagram transport. It keeps the
// teacher's Transport interface shape (Listen/Consumer/LocalAddr/Close) but
// drops the TCP pooled-connection RPC framing (Sync/EagerSync/FastForward/
// Join) entirely: gossip envelopes are one-shot UDP datagrams, not paired
// request/response calls over a persistent stream, so there is nothing for
// that framing to wrap.
package net

// Datagram is one inbound UDP packet, handed to the consumer channel in
// arrival order for its source address.
type Datagram struct {
	Addr string
	Data []byte
}

// Transport is the node runtime's UDP endpoint.
type Transport interface {
	// Listen starts the background receive loop feeding Consumer().
	Listen()

	// Consumer returns the channel of inbound datagrams.
	Consumer() <-chan Datagram

	// LocalAddr is the bound ip:port.
	LocalAddr() string

	// Send writes data to addr as a single UDP datagram.
	Send(addr string, data []byte) error

	// Close stops the receive loop and releases the socket.
	Close() error
}
