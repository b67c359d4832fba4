// Package discovery implements the periodic GET_PEERS loop: a supplemented
// feature (see discovery_interval_s) that keeps the peer table growing
// after the one-shot bootstrap handshake, by re-asking already-known peers
// for their peer lists.
package discovery

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
)

// Sender is the encode-and-send boundary, satisfied by *outbox.Outbox.
type Sender interface {
	Send(addr string, env *envelope.Envelope) error
}

// Loop periodically asks a sample of known peers for GET_PEERS.
type Loop struct {
	selfID    string
	selfAddr  string
	fanout    int
	peerLimit int

	clock  clock.Clock
	table  *peers.Table
	sender Sender
	sink   eventlog.Recorder
}

// New returns a discovery Loop.
func New(selfID, selfAddr string, fanout, peerLimit int, clk clock.Clock, table *peers.Table, sender Sender, sink eventlog.Recorder) *Loop {
	return &Loop{
		selfID:    selfID,
		selfAddr:  selfAddr,
		fanout:    fanout,
		peerLimit: peerLimit,
		clock:     clk,
		table:     table,
		sender:    sender,
		sink:      sink,
	}
}

// Tick sends GET_PEERS to up to fanout sampled peers.
func (l *Loop) Tick() {
	targets := l.table.Sample(nil, l.fanout)
	for _, t := range targets {
		env := &envelope.Envelope{
			Version:     envelope.SupportedVersion,
			MsgID:       uuid.NewString(),
			MsgType:     envelope.MsgGetPeers,
			SenderID:    l.selfID,
			SenderAddr:  l.selfAddr,
			TimestampMs: l.clock.EpochMs(),
			Payload: map[string]interface{}{
				"max_peers": l.peerLimit,
			},
		}
		l.sender.Send(t.Addr, env)
		l.sink.Record("discovery_get_peers_sent", logrus.Fields{"to": t.Addr})
	}
}
