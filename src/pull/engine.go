// Package pull implements the hybrid push-pull supplement: periodic IHAVE
// advertisement, IWANT requesting for what is missing, and IWANT
// fulfillment from known-messages.
package pull

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
)

// Sender is the encode-and-send boundary, satisfied by *outbox.Outbox.
type Sender interface {
	Send(addr string, env *envelope.Envelope) error
}

// MessageStore is the subset of *gossip.Engine the pull engine depends on:
// seen-set membership, known-message lookup, and the most-recent-first
// advertisement ordering.
type MessageStore interface {
	Seen(msgID string) bool
	Fulfill(msgID string) (*envelope.Envelope, bool)
	KnownIDsMostRecentFirst() []string
}

// Engine runs the periodic IHAVE tick and the IHAVE/IWANT receive handlers.
type Engine struct {
	selfID      string
	selfAddr    string
	fanout      int
	idsMaxIHave int

	table  *peers.Table
	store  MessageStore
	sender Sender
	sink   eventlog.Recorder

	nowEpochMs func() int64
}

// New returns a pull Engine. nowEpochMs supplies timestamp_ms for outbound
// envelopes; pass clock.Clock.EpochMs.
func New(selfID, selfAddr string, fanout, idsMaxIHave int, table *peers.Table, store MessageStore, sender Sender, sink eventlog.Recorder, nowEpochMs func() int64) *Engine {
	return &Engine{
		selfID:      selfID,
		selfAddr:    selfAddr,
		fanout:      fanout,
		idsMaxIHave: idsMaxIHave,
		table:       table,
		store:       store,
		sender:      sender,
		sink:        sink,
		nowEpochMs:  nowEpochMs,
	}
}

// Tick advertises up to idsMaxIHave known message ids, most-recent-first, to
// up to fanout randomly sampled peers.
func (e *Engine) Tick() {
	ids := e.store.KnownIDsMostRecentFirst()
	if len(ids) > e.idsMaxIHave {
		ids = ids[:e.idsMaxIHave]
	}
	if len(ids) == 0 {
		return
	}

	idsAny := make([]interface{}, len(ids))
	for i, id := range ids {
		idsAny[i] = id
	}

	targets := e.table.Sample(nil, e.fanout)
	for _, t := range targets {
		env := e.buildEnvelope(envelope.MsgIHave, map[string]interface{}{
			"ids":     idsAny,
			"max_ids": e.idsMaxIHave,
		})
		e.sender.Send(t.Addr, env)
		e.sink.Record("ihave_sent", logrus.Fields{"to": t.Addr, "count": len(ids)})
	}
}

// HandleIHave computes missing = ids \ seen_set and, if non-empty, requests
// them with a single IWANT back to the advertiser.
func (e *Engine) HandleIHave(fromAddr string, env *envelope.Envelope) {
	ids, ok := stringSlice(env.Payload["ids"])
	if !ok {
		return
	}

	missing := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if !e.store.Seen(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	env2 := e.buildEnvelope(envelope.MsgIWant, map[string]interface{}{"ids": missing})
	e.sender.Send(fromAddr, env2)
	e.sink.Record("iwant_sent", logrus.Fields{"to": fromAddr, "count": len(missing)})
}

// HandleIWant fulfills every requested id present in known-messages with a
// ttl=1 GOSSIP carrying the original msg_id and payload; ids this node does
// not have are silently ignored.
func (e *Engine) HandleIWant(fromAddr string, env *envelope.Envelope) {
	ids, ok := stringSlice(env.Payload["ids"])
	if !ok {
		return
	}

	for _, id := range ids {
		fulfillment, ok := e.store.Fulfill(id)
		if !ok {
			e.sink.Record("iwant_miss", logrus.Fields{"from": fromAddr, "msg_id": id})
			continue
		}
		e.sender.Send(fromAddr, fulfillment)
		e.sink.Record("iwant_fulfilled", logrus.Fields{"to": fromAddr, "msg_id": id})
	}
}

func (e *Engine) buildEnvelope(msgType envelope.MsgType, payload map[string]interface{}) *envelope.Envelope {
	return &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       uuid.NewString(),
		MsgType:     msgType,
		SenderID:    e.selfID,
		SenderAddr:  e.selfAddr,
		TimestampMs: e.nowEpochMs(),
		Payload:     payload,
	}
}

func stringSlice(v interface{}) ([]string, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
