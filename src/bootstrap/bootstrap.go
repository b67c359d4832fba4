// Package bootstrap implements the one-shot startup handshake: HELLO
// (optionally carrying proof-of-work) followed by GET_PEERS to the
// configured entry node.
package bootstrap

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/crypto"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
)

// Sender is the encode-and-send boundary, satisfied by *outbox.Outbox.
type Sender interface {
	Send(addr string, env *envelope.Envelope) error
}

// Driver runs the bootstrap handshake exactly once at startup.
type Driver struct {
	selfID    string
	selfAddr  string
	peerLimit int
	kPow      int

	clock  clock.Clock
	sender Sender
	sink   eventlog.Recorder
}

// New returns a bootstrap Driver.
func New(selfID, selfAddr string, peerLimit, kPow int, clk clock.Clock, sender Sender, sink eventlog.Recorder) *Driver {
	return &Driver{
		selfID:    selfID,
		selfAddr:  selfAddr,
		peerLimit: peerLimit,
		kPow:      kPow,
		clock:     clk,
		sender:    sender,
		sink:      sink,
	}
}

// Run sends HELLO then GET_PEERS to bootstrapAddr, unless it equals
// selfAddr (in which case this node is the entry node and the handshake is
// skipped). A send error is logged, not fatal; the node keeps running with
// an empty peer table and relies on inbound HELLO/PEERS_LIST to populate it.
func (d *Driver) Run(bootstrapAddr string) {
	if bootstrapAddr == "" || bootstrapAddr == d.selfAddr {
		return
	}

	hello := d.buildHello()
	d.sender.Send(bootstrapAddr, hello)
	d.sink.Record("bootstrap_hello_sent", logrus.Fields{"to": bootstrapAddr})

	getPeers := &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       uuid.NewString(),
		MsgType:     envelope.MsgGetPeers,
		SenderID:    d.selfID,
		SenderAddr:  d.selfAddr,
		TimestampMs: d.clock.EpochMs(),
		Payload: map[string]interface{}{
			"max_peers": d.peerLimit,
		},
	}
	d.sender.Send(bootstrapAddr, getPeers)
	d.sink.Record("bootstrap_get_peers_sent", logrus.Fields{"to": bootstrapAddr})
}

func (d *Driver) buildHello() *envelope.Envelope {
	payload := map[string]interface{}{
		"capabilities": []interface{}{"udp", "json"},
	}
	if d.kPow > 0 {
		pow := crypto.ProduceProofOfWork(d.selfID, d.kPow)
		payload["pow"] = map[string]interface{}{
			"hash_alg":     pow.HashAlg,
			"difficulty_k": pow.Difficulty,
			"nonce":        pow.Nonce,
			"digest_hex":   pow.DigestHex,
		}
	}
	return &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       uuid.NewString(),
		MsgType:     envelope.MsgHello,
		SenderID:    d.selfID,
		SenderAddr:  d.selfAddr,
		TimestampMs: d.clock.EpochMs(),
		Payload:     payload,
	}
}
