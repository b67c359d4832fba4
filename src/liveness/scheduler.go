// Package liveness implements the three-pass liveness tick: probe timeout
// accounting, dead-peer eviction, and fresh probe dispatch, plus the
// PING/PONG receive handlers that drive per-peer correlation state.
package liveness

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

// Scheduler runs the liveness tick and PING/PONG handlers described by the
// liveness scheduler component design.
type Scheduler struct {
	selfID        string
	selfAddr      string
	pingIntervalS float64
	peerTimeoutS  float64

	clock  clock.Clock
	table  *peers.Table
	sender Sender
	sink   eventlog.Recorder
}

// New returns a Scheduler.
func New(selfID, selfAddr string, pingIntervalS, peerTimeoutS float64, clk clock.Clock, table *peers.Table, sender Sender, sink eventlog.Recorder) *Scheduler {
	return &Scheduler{
		selfID:        selfID,
		selfAddr:      selfAddr,
		pingIntervalS: pingIntervalS,
		peerTimeoutS:  peerTimeoutS,
		clock:         clk,
		table:         table,
		sender:        sender,
		sink:          sink,
	}
}

// Tick runs the timeout pass, eviction pass, and probe pass in order, as
// required by the ordering guarantees of the concurrency model.
func (s *Scheduler) Tick() {
	nowMs := s.clock.NowMs()
	pingIntervalMs := int64(s.pingIntervalS * 1000)
	peerTimeoutMs := int64(s.peerTimeoutS * 1000)

	s.timeoutPass(nowMs, pingIntervalMs)
	s.evictionPass(nowMs, peerTimeoutMs)
	s.probePass(nowMs)
}

func (s *Scheduler) timeoutPass(nowMs, pingIntervalMs int64) {
	for _, rec := range s.table.All() {
		if !rec.HasPendingPing() {
			continue
		}
		if nowMs-rec.LastPingSentMs < pingIntervalMs {
			continue
		}
		addr := rec.Addr
		s.table.Mutate(addr, func(r *peers.Record) {
			r.ClearPendingPing()
			r.ConsecutivePingFailures++
		})
		s.sink.Record("ping_timeout", logrus.Fields{"addr": addr})
	}
}

func (s *Scheduler) evictionPass(nowMs, peerTimeoutMs int64) {
	for _, rec := range s.table.All() {
		staleness := nowMs - rec.LastSeenMs
		var reason peers.EvictReason
		switch {
		case staleness > peerTimeoutMs:
			reason = peers.EvictReasonPeerTimeout
		case rec.ConsecutivePingFailures >= 3:
			reason = peers.EvictReasonPingFailure
		default:
			continue
		}

		evicted, ok := s.table.Evict(rec.Addr)
		if !ok {
			continue
		}
		s.sink.Record("peer_evict_dead", logrus.Fields{
			"addr": evicted.Addr, "reason": string(reason),
			"last_seen_age_ms": staleness, "failures": evicted.ConsecutivePingFailures,
		})
	}
}

func (s *Scheduler) probePass(nowMs int64) {
	for _, rec := range s.table.All() {
		if rec.HasPendingPing() {
			continue
		}
		addr := rec.Addr
		pingID := uuid.NewString()
		var seq int
		s.table.Mutate(addr, func(r *peers.Record) {
			r.NextPingSeq++
			seq = r.NextPingSeq
			r.LastPingSentMs = nowMs
			r.PendingPingID = pingID
			r.PendingPingSeq = seq
		})

		env := &envelope.Envelope{
			Version:     envelope.SupportedVersion,
			MsgID:       uuid.NewString(),
			MsgType:     envelope.MsgPing,
			SenderID:    s.selfID,
			SenderAddr:  s.selfAddr,
			TimestampMs: s.clock.EpochMs(),
			Payload: map[string]interface{}{
				"ping_id": pingID,
				"seq":     seq,
			},
		}
		s.sender.Send(addr, env)
		s.sink.Record("ping_sent", logrus.Fields{"addr": addr, "ping_id": pingID, "seq": seq})
	}
}

// HandlePing validates ping_id/seq, updates the sender's last_seen_ms, and
// echoes a PONG.
func (s *Scheduler) HandlePing(fromAddr string, env *envelope.Envelope) {
	pingID, ok := env.Payload["ping_id"].(string)
	if !ok || pingID == "" {
		return
	}
	seq, ok := asInt(env.Payload["seq"])
	if !ok {
		return
	}

	nowMs := s.clock.NowMs()
	s.table.Mutate(fromAddr, func(r *peers.Record) { r.LastSeenMs = nowMs })

	s.sink.Record("ping_received", logrus.Fields{"from": fromAddr, "ping_id": pingID, "seq": seq})

	resp := &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       uuid.NewString(),
		MsgType:     envelope.MsgPong,
		SenderID:    s.selfID,
		SenderAddr:  s.selfAddr,
		TimestampMs: s.clock.EpochMs(),
		Payload: map[string]interface{}{
			"ping_id": pingID,
			"seq":     seq,
		},
	}
	s.sender.Send(fromAddr, resp)
	s.sink.Record("pong_sent", logrus.Fields{"to": fromAddr, "ping_id": pingID, "seq": seq})
}

// HandlePong matches against the peer's current pending_ping_id. A PONG
// that races an already-processed timeout no longer matches the cleared
// token and is treated as unmatched, per the concurrency model's race rule.
func (s *Scheduler) HandlePong(fromAddr string, env *envelope.Envelope) {
	pingID, ok := env.Payload["ping_id"].(string)
	if !ok || pingID == "" {
		s.sink.Record("pong_received", logrus.Fields{"from": fromAddr, "status": "unmatched"})
		return
	}

	rec, ok := s.table.Get(fromAddr)
	if !ok || rec.PendingPingID != pingID {
		s.sink.Record("pong_received", logrus.Fields{"from": fromAddr, "status": "unmatched", "ping_id": pingID})
		return
	}

	nowMs := s.clock.NowMs()
	rtt := nowMs - rec.LastPingSentMs
	s.table.Mutate(fromAddr, func(r *peers.Record) {
		r.RTTMs = rtt
		r.ConsecutivePingFailures = 0
		r.ClearPendingPing()
	})

	s.sink.Record("pong_received", logrus.Fields{
		"from": fromAddr, "status": "matched", "ping_id": pingID, "rtt_ms": rtt,
	})
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}
