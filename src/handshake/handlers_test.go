package handshake

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/crypto"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
	"github.com/AbolfazlSheikhha/gossip-network/src/rng"
)

type fakeSender struct {
	sent []sentMsg
}

type sentMsg struct {
	addr string
	env  *envelope.Envelope
}

func (f *fakeSender) Send(addr string, env *envelope.Envelope) error {
	f.sent = append(f.sent, sentMsg{addr: addr, env: env})
	return nil
}

type fakeRecorder struct {
	events []logrus.Fields
	names  []string
}

func (f *fakeRecorder) Record(event string, fields logrus.Fields) {
	f.names = append(f.names, event)
	f.events = append(f.events, fields)
}

func (f *fakeRecorder) has(name string) bool {
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

func newTestHandler(kPow int) (*Handler, *fakeSender, *fakeRecorder, *peers.Table) {
	table := peers.New("127.0.0.1:5000", 5, 60000, rng.New(1))
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	h := New("self", "127.0.0.1:5000", 5, kPow, clock.NewFake(0, 0), table, sender, rec)
	return h, sender, rec, table
}

func helloEnvelope(senderID string, caps []interface{}, pow map[string]interface{}) *envelope.Envelope {
	payload := map[string]interface{}{"capabilities": caps}
	if pow != nil {
		payload["pow"] = pow
	}
	return &envelope.Envelope{MsgType: envelope.MsgHello, SenderID: senderID, Payload: payload}
}

func TestHandleHelloRejectsMissingCapabilities(t *testing.T) {
	h, _, rec, table := newTestHandler(0)
	h.HandleHello("127.0.0.1:5001", helloEnvelope("p1", []interface{}{"udp"}, nil))

	if !rec.has("hello_rejected") {
		t.Fatalf("expected hello_rejected for missing json capability")
	}
	if table.Len() != 0 {
		t.Fatalf("rejected hello must not admit the peer")
	}
}

func TestHandleHelloAcceptsValidCapabilitiesNoPow(t *testing.T) {
	h, _, rec, table := newTestHandler(0)
	h.HandleHello("127.0.0.1:5001", helloEnvelope("p1", []interface{}{"udp", "json"}, nil))

	if !rec.has("hello_accepted") {
		t.Fatalf("expected hello_accepted")
	}
	r, ok := table.Get("127.0.0.1:5001")
	if !ok || !r.IsVerifiedHello {
		t.Fatalf("accepted peer must be admitted and marked verified")
	}
}

func TestHandleHelloRequiresPowWhenKPowSet(t *testing.T) {
	h, _, rec, _ := newTestHandler(4)
	h.HandleHello("127.0.0.1:5001", helloEnvelope("p1", []interface{}{"udp", "json"}, nil))

	if !rec.has("hello_rejected") {
		t.Fatalf("expected hello_rejected for missing pow")
	}
}

func TestHandleHelloValidPowAccepted(t *testing.T) {
	h, _, rec, table := newTestHandler(3)
	pow := crypto.ProduceProofOfWork("p1", 3)
	powMap := map[string]interface{}{
		"hash_alg": pow.HashAlg, "difficulty_k": pow.Difficulty, "nonce": pow.Nonce, "digest_hex": pow.DigestHex,
	}
	h.HandleHello("127.0.0.1:5001", helloEnvelope("p1", []interface{}{"udp", "json"}, powMap))

	if !rec.has("hello_accepted") {
		t.Fatalf("expected hello_accepted for valid pow")
	}
	if table.Len() != 1 {
		t.Fatalf("expected peer admitted")
	}
}

func TestHandleHelloTamperedPowRejected(t *testing.T) {
	h, _, rec, table := newTestHandler(3)
	pow := crypto.ProduceProofOfWork("p1", 3)
	powMap := map[string]interface{}{
		"hash_alg": pow.HashAlg, "difficulty_k": pow.Difficulty, "nonce": pow.Nonce + 1, "digest_hex": pow.DigestHex,
	}
	h.HandleHello("127.0.0.1:5001", helloEnvelope("p1", []interface{}{"udp", "json"}, powMap))

	if !rec.has("hello_rejected") {
		t.Fatalf("expected hello_rejected for tampered pow")
	}
	if table.Len() != 0 {
		t.Fatalf("tampered pow must not admit the peer")
	}
}

func TestHandleGetPeersExcludesRequesterAndSelf(t *testing.T) {
	h, sender, _, table := newTestHandler(0)
	table.Upsert("127.0.0.1:5002", 0, func() peers.Record { return peers.Record{NodeID: "n2"} })
	table.Upsert("127.0.0.1:5003", 0, func() peers.Record { return peers.Record{NodeID: "n3"} })

	req := &envelope.Envelope{MsgType: envelope.MsgGetPeers, Payload: map[string]interface{}{"max_peers": 10}}
	h.HandleGetPeers("127.0.0.1:5002", req)

	if len(sender.sent) != 1 {
		t.Fatalf("expected one PEERS_LIST reply")
	}
	entries := sender.sent[0].env.Payload["peers"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected requester excluded, 1 remaining entry, got %d", len(entries))
	}
}

func TestHandleHelloCapacityReplacementEmitsPeerEvict(t *testing.T) {
	table := peers.New("127.0.0.1:5000", 1, 60000, rng.New(1))
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	h := New("self", "127.0.0.1:5000", 1, 0, clock.NewFake(70000, 0), table, sender, rec)

	table.Upsert("127.0.0.1:5001", 0, func() peers.Record { return peers.Record{NodeID: "n1"} })

	h.HandleHello("127.0.0.1:5002", helloEnvelope("p2", []interface{}{"udp", "json"}, nil))

	if !rec.has("peer_evict") {
		t.Fatalf("expected peer_evict when a full table's HELLO triggers a capacity replacement")
	}
	if _, ok := table.Get("127.0.0.1:5002"); !ok {
		t.Fatalf("expected the new peer admitted in place of the evicted one")
	}
}

func TestHandlePeersListMergesAndCountsOutcomes(t *testing.T) {
	h, _, rec, table := newTestHandler(0)

	list := &envelope.Envelope{
		MsgType: envelope.MsgPeersList,
		Payload: map[string]interface{}{
			"peers": []interface{}{
				map[string]interface{}{"node_id": "n1", "addr": "127.0.0.1:5001"},
				map[string]interface{}{"node_id": "n2", "addr": "127.0.0.1:5000"}, // self, must be ignored
				map[string]interface{}{"addr": ""},                               // invalid
			},
		},
	}
	h.HandlePeersList("127.0.0.1:5005", list)

	if table.Len() != 1 {
		t.Fatalf("expected exactly one valid peer merged, got %d", table.Len())
	}
	if !rec.has("peers_list_received") {
		t.Fatalf("expected peers_list_received event")
	}
}
