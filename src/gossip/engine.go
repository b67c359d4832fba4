// Package gossip implements push-based rumor dissemination: origination
// from a stdin line, dedup via a seen-set, store-and-forward with strict
// TTL decrement, and fanout-sampled forwarding through the peer table's
// seeded RNG.
package gossip

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
)

// Sender is the encode-and-send boundary engines are given; satisfied by
// *outbox.Outbox in production and a recording fake in tests.
type Sender interface {
	Send(addr string, env *envelope.Envelope) error
}

// StoredMessage is one entry of KnownMessages: the full gossip payload plus
// the bookkeeping needed to answer IWANT and to rank IHAVE advertisements.
type StoredMessage struct {
	MsgID             string
	Topic             string
	Data              string
	OriginID          string
	OriginTimestampMs int64
	FirstSeenMs       int64
}

// Engine owns the seen-set and known-messages maps and the push-gossip
// algorithm described by the gossip engine component.
type Engine struct {
	selfID   string
	selfAddr string
	fanout   int
	ttl      int

	clock  clock.Clock
	table  *peers.Table
	sender Sender
	sink   eventlog.Recorder

	seen  map[string]bool
	known map[string]StoredMessage
}

// New returns an Engine with empty seen-set and known-messages maps.
func New(selfID, selfAddr string, fanout, ttl int, clk clock.Clock, table *peers.Table, sender Sender, sink eventlog.Recorder) *Engine {
	return &Engine{
		selfID:   selfID,
		selfAddr: selfAddr,
		fanout:   fanout,
		ttl:      ttl,
		clock:    clk,
		table:    table,
		sender:   sender,
		sink:     sink,
		seen:     make(map[string]bool),
		known:    make(map[string]StoredMessage),
	}
}

// Seen reports whether msgID has already been processed. Exposed for the
// hybrid pull engine's IHAVE-received "missing = ids \ seen_set" computation.
func (e *Engine) Seen(msgID string) bool {
	return e.seen[msgID]
}

// Known returns the stored message for msgID, if the node has it, for the
// hybrid pull engine's IWANT fulfillment.
func (e *Engine) Known(msgID string) (StoredMessage, bool) {
	m, ok := e.known[msgID]
	return m, ok
}

// KnownIDsMostRecentFirst returns every known msg_id ordered by
// FirstSeenMs descending, the selection policy IHAVE advertisement uses
// when known-messages exceeds ids_max_ihave.
func (e *Engine) KnownIDsMostRecentFirst() []string {
	ids := make([]string, 0, len(e.known))
	for id := range e.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := e.known[ids[i]], e.known[ids[j]]
		if a.FirstSeenMs != b.FirstSeenMs {
			return a.FirstSeenMs > b.FirstSeenMs
		}
		return a.MsgID < b.MsgID
	})
	return ids
}

// Originate mints a fresh message from a trimmed, non-empty stdin line and
// pushes it to up to fanout sampled peers.
func (e *Engine) Originate(line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}

	msgID := uuid.NewString()
	nowMono := e.clock.NowMs()
	nowEpoch := e.clock.EpochMs()

	stored := StoredMessage{
		MsgID:             msgID,
		Topic:             "stdin",
		Data:              text,
		OriginID:          e.selfID,
		OriginTimestampMs: nowEpoch,
		FirstSeenMs:       nowMono,
	}
	e.seen[msgID] = true
	e.known[msgID] = stored

	ttl := e.ttl
	env := &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       msgID,
		MsgType:     envelope.MsgGossip,
		SenderID:    e.selfID,
		SenderAddr:  e.selfAddr,
		TimestampMs: nowEpoch,
		TTL:         &ttl,
		Payload: map[string]interface{}{
			"topic":               stored.Topic,
			"data":                stored.Data,
			"origin_id":           stored.OriginID,
			"origin_timestamp_ms": stored.OriginTimestampMs,
		},
	}

	targets := e.table.Sample(nil, e.fanout)
	for _, t := range targets {
		e.sender.Send(t.Addr, env)
	}

	e.sink.Record("gossip_originated", logrus.Fields{
		"msg_id":       msgID,
		"origin_ts_ms": nowEpoch,
		"ttl_initial":  e.ttl,
		"text_len":     len(text),
	})
}

// HandleGossip implements the on-GOSSIP-receive algorithm: dedup, store,
// strict ttl-decrement-then-forward-if-positive, fanout-sampled forward.
func (e *Engine) HandleGossip(srcAddr string, env *envelope.Envelope) {
	payload, ok := parsePayload(env.Payload)
	if !ok {
		e.sink.Record("gossip_payload_invalid", logrus.Fields{"from": srcAddr, "msg_id": env.MsgID})
		return
	}

	msgID := env.MsgID
	if e.seen[msgID] {
		e.sink.Record("gossip_duplicate_ignored", logrus.Fields{"msg_id": msgID, "from": srcAddr})
		return
	}

	nowMono := e.clock.NowMs()
	e.seen[msgID] = true
	e.known[msgID] = StoredMessage{
		MsgID:             msgID,
		Topic:             payload.Topic,
		Data:              payload.Data,
		OriginID:          payload.OriginID,
		OriginTimestampMs: payload.OriginTimestampMs,
		FirstSeenMs:       nowMono,
	}

	ttlIn := 0
	if env.TTL != nil {
		ttlIn = *env.TTL
	}
	e.sink.Record("gossip_first_seen", logrus.Fields{
		"msg_id":     msgID,
		"recv_ts_ms": e.clock.EpochMs(),
		"from_peer":  srcAddr,
		"ttl_in":     ttlIn,
	})

	ttlOut := ttlIn - 1
	if ttlOut <= 0 {
		e.sink.Record("gossip_forward_decision", logrus.Fields{
			"msg_id": msgID, "reason": "ttl_exhausted",
		})
		return
	}

	excluding := map[string]bool{srcAddr: true}
	targets := e.table.Sample(excluding, e.fanout)

	nowEpoch := e.clock.EpochMs()
	for _, t := range targets {
		fwdTTL := ttlOut
		fwd := &envelope.Envelope{
			Version:     envelope.SupportedVersion,
			MsgID:       msgID,
			MsgType:     envelope.MsgGossip,
			SenderID:    e.selfID,
			SenderAddr:  e.selfAddr,
			TimestampMs: nowEpoch,
			TTL:         &fwdTTL,
			Payload: map[string]interface{}{
				"topic":               payload.Topic,
				"data":                payload.Data,
				"origin_id":           payload.OriginID,
				"origin_timestamp_ms": payload.OriginTimestampMs,
			},
		}
		e.sender.Send(t.Addr, fwd)
		e.sink.Record("gossip_forwarded", logrus.Fields{
			"msg_id": msgID, "to": t.Addr, "ttl_out": fwdTTL,
		})
	}
}

// Fulfill builds the ttl=1 GOSSIP envelope used to answer an IWANT, reusing
// the stored msg_id and payload verbatim.
func (e *Engine) Fulfill(msgID string) (*envelope.Envelope, bool) {
	stored, ok := e.known[msgID]
	if !ok {
		return nil, false
	}
	ttl := 1
	return &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       stored.MsgID,
		MsgType:     envelope.MsgGossip,
		SenderID:    e.selfID,
		SenderAddr:  e.selfAddr,
		TimestampMs: e.clock.EpochMs(),
		TTL:         &ttl,
		Payload: map[string]interface{}{
			"topic":               stored.Topic,
			"data":                stored.Data,
			"origin_id":           stored.OriginID,
			"origin_timestamp_ms": stored.OriginTimestampMs,
		},
	}, true
}

type gossipPayload struct {
	Topic             string
	Data              string
	OriginID          string
	OriginTimestampMs int64
}

func parsePayload(raw map[string]interface{}) (gossipPayload, bool) {
	topic, ok := raw["topic"].(string)
	if !ok {
		return gossipPayload{}, false
	}
	data, ok := raw["data"].(string)
	if !ok {
		return gossipPayload{}, false
	}
	originID, ok := raw["origin_id"].(string)
	if !ok {
		return gossipPayload{}, false
	}
	originTs, ok := asInt64(raw["origin_timestamp_ms"])
	if !ok {
		return gossipPayload{}, false
	}
	return gossipPayload{Topic: topic, Data: data, OriginID: originID, OriginTimestampMs: originTs}, true
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
