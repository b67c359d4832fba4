// Package handshake implements the HELLO admission handler and the
// GET_PEERS/PEERS_LIST discovery exchange. Together with bootstrap, this is
// how a node's peer table grows beyond what it was configured with.
package handshake

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/crypto"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
)

// Sender is the encode-and-send boundary, satisfied by *outbox.Outbox.
type Sender interface {
	Send(addr string, env *envelope.Envelope) error
}

// Handler owns the HELLO/GET_PEERS/PEERS_LIST receive-path logic.
type Handler struct {
	selfID    string
	selfAddr  string
	peerLimit int
	kPow      int

	clock  clock.Clock
	table  *peers.Table
	sender Sender
	sink   eventlog.Recorder
}

// New returns a handshake Handler.
func New(selfID, selfAddr string, peerLimit, kPow int, clk clock.Clock, table *peers.Table, sender Sender, sink eventlog.Recorder) *Handler {
	return &Handler{
		selfID:    selfID,
		selfAddr:  selfAddr,
		peerLimit: peerLimit,
		kPow:      kPow,
		clock:     clk,
		table:     table,
		sender:    sender,
		sink:      sink,
	}
}

// HandleHello validates capabilities and, if k_pow > 0, the attached proof
// of work, then admits the sender into the peer table. A HELLO is never
// answered: admission failures are a silent drop to avoid reflection.
func (h *Handler) HandleHello(fromAddr string, env *envelope.Envelope) {
	caps, ok := stringSlice(env.Payload["capabilities"])
	if !ok || !contains(caps, "udp") || !contains(caps, "json") {
		h.sink.Record("hello_rejected", logrus.Fields{"from": fromAddr, "reason": "capabilities_invalid"})
		return
	}

	if h.kPow > 0 {
		powRaw, ok := env.Payload["pow"].(map[string]interface{})
		if !ok {
			h.sink.Record("hello_rejected", logrus.Fields{"from": fromAddr, "reason": "pow_missing"})
			return
		}
		pow, ok := parsePow(powRaw)
		if !ok || !crypto.VerifyProofOfWork(env.SenderID, pow, h.kPow) {
			h.sink.Record("hello_rejected", logrus.Fields{"from": fromAddr, "reason": "pow_invalid"})
			return
		}
	}

	nowMs := h.clock.NowMs()
	nodeID := env.SenderID

	_, result, evicted := h.table.Upsert(fromAddr, nowMs, func() peers.Record {
		return peers.Record{
			NodeID:          nodeID,
			LastSeenMs:      nowMs,
			IsVerifiedHello: true,
			Source:          peers.SourceHello,
			RTTMs:           -1,
		}
	})

	switch result {
	case peers.ResultRejected:
		h.sink.Record("peer_limit_reject", logrus.Fields{"addr": fromAddr})
		return
	case peers.ResultUpdated:
		h.table.Mutate(fromAddr, func(r *peers.Record) {
			r.LastSeenMs = nowMs
			r.IsVerifiedHello = true
			if nodeID != "" {
				r.NodeID = nodeID
			}
		})
		h.sink.Record("peer_update", logrus.Fields{"addr": fromAddr})
	case peers.ResultAdded:
		h.sink.Record("peer_add", logrus.Fields{"addr": fromAddr, "source": string(peers.SourceHello)})
	case peers.ResultReplaced:
		if evicted != nil {
			h.sink.Record("peer_evict", logrus.Fields{
				"addr": evicted.Addr, "reason": string(peers.EvictReasonCapacity),
			})
		}
		h.sink.Record("peer_add", logrus.Fields{"addr": fromAddr, "source": string(peers.SourceHello), "replaced": true})
	}

	h.sink.Record("hello_accepted", logrus.Fields{"from": fromAddr, "node_id": nodeID})
}

// HandleGetPeers answers with up to min(max_peers or peer_limit, peer_limit,
// known_peer_count) entries, excluding the requester and self.
func (h *Handler) HandleGetPeers(fromAddr string, env *envelope.Envelope) {
	maxPeers := h.peerLimit
	if n, ok := asInt(env.Payload["max_peers"]); ok && n >= 1 {
		maxPeers = n
	}
	if maxPeers > h.peerLimit {
		maxPeers = h.peerLimit
	}

	all := h.table.All()
	entries := make([]interface{}, 0, len(all))
	seen := map[string]bool{fromAddr: true, h.selfAddr: true}
	for _, rec := range all {
		if seen[rec.Addr] {
			continue
		}
		seen[rec.Addr] = true
		entries = append(entries, map[string]interface{}{
			"node_id": rec.NodeID,
			"addr":    rec.Addr,
		})
		if len(entries) >= maxPeers {
			break
		}
	}

	resp := &envelope.Envelope{
		Version:     envelope.SupportedVersion,
		MsgID:       uuid.NewString(),
		MsgType:     envelope.MsgPeersList,
		SenderID:    h.selfID,
		SenderAddr:  h.selfAddr,
		TimestampMs: h.clock.EpochMs(),
		Payload: map[string]interface{}{
			"peers": entries,
		},
	}
	h.sender.Send(fromAddr, resp)
	h.sink.Record("peers_list_sent", logrus.Fields{"to": fromAddr, "count": len(entries)})
}

// HandlePeersList merges each valid, non-self, non-duplicate entry via the
// peer table's replacement policy and reports added/updated/ignored/evicted
// counters.
func (h *Handler) HandlePeersList(fromAddr string, env *envelope.Envelope) {
	rawEntries, ok := env.Payload["peers"].([]interface{})
	if !ok {
		return
	}

	nowMs := h.clock.NowMs()
	added, updated, ignored, evicted := 0, 0, 0, 0

	for _, raw := range rawEntries {
		m, ok := raw.(map[string]interface{})
		if !ok {
			ignored++
			continue
		}
		addr, ok := m["addr"].(string)
		if !ok || addr == "" {
			ignored++
			continue
		}
		if addr == h.selfAddr {
			ignored++
			continue
		}
		nodeID, _ := m["node_id"].(string)

		_, result, evictedRec := h.table.Upsert(addr, nowMs, func() peers.Record {
			return peers.Record{
				NodeID:     nodeID,
				LastSeenMs: nowMs,
				Source:     peers.SourcePeersList,
				RTTMs:      -1,
			}
		})
		switch result {
		case peers.ResultAdded:
			added++
		case peers.ResultUpdated:
			updated++
		case peers.ResultReplaced:
			added++
			evicted++
			if evictedRec != nil {
				h.sink.Record("peer_evict", logrus.Fields{
					"addr": evictedRec.Addr, "reason": string(peers.EvictReasonCapacity),
				})
			}
		case peers.ResultRejected:
			ignored++
		}
	}

	h.sink.Record("peers_list_received", logrus.Fields{
		"from": fromAddr, "added": added, "updated": updated, "ignored": ignored, "evicted": evicted,
	})
}

func parsePow(raw map[string]interface{}) (crypto.ProofOfWork, bool) {
	hashAlg, ok := raw["hash_alg"].(string)
	if !ok {
		return crypto.ProofOfWork{}, false
	}
	difficulty, ok := asInt(raw["difficulty_k"])
	if !ok {
		return crypto.ProofOfWork{}, false
	}
	nonce, ok := asInt64(raw["nonce"])
	if !ok {
		return crypto.ProofOfWork{}, false
	}
	digestHex, ok := raw["digest_hex"].(string)
	if !ok {
		return crypto.ProofOfWork{}, false
	}
	return crypto.ProofOfWork{HashAlg: hashAlg, Difficulty: difficulty, Nonce: nonce, DigestHex: digestHex}, true
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

func contains(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
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
