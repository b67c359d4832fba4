package bootstrap

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/crypto"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
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
	events []string
}

func (f *fakeRecorder) Record(event string, fields logrus.Fields) {
	f.events = append(f.events, event)
}

func TestRunSkippedWhenBootstrapIsSelf(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	d := New("self", "127.0.0.1:5000", 30, 0, clock.NewFake(0, 0), sender, rec)

	d.Run("127.0.0.1:5000")

	if len(sender.sent) != 0 {
		t.Fatalf("bootstrap node must not handshake with itself")
	}
}

func TestRunSendsHelloThenGetPeers(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	d := New("self", "127.0.0.1:5001", 30, 0, clock.NewFake(0, 0), sender, rec)

	d.Run("127.0.0.1:5000")

	if len(sender.sent) != 2 {
		t.Fatalf("expected HELLO then GET_PEERS, got %d sends", len(sender.sent))
	}
	if sender.sent[0].env.MsgType != envelope.MsgHello {
		t.Fatalf("first send must be HELLO")
	}
	if sender.sent[1].env.MsgType != envelope.MsgGetPeers {
		t.Fatalf("second send must be GET_PEERS")
	}
	if sender.sent[1].env.Payload["max_peers"] != 30 {
		t.Fatalf("GET_PEERS must request up to peer_limit")
	}
}

func TestRunAttachesValidProofOfWorkWhenKPowSet(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	d := New("self-node", "127.0.0.1:5001", 30, 4, clock.NewFake(0, 0), sender, rec)

	d.Run("127.0.0.1:5000")

	hello := sender.sent[0].env
	powRaw, ok := hello.Payload["pow"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a pow field when k_pow > 0")
	}
	pow := crypto.ProofOfWork{
		HashAlg:    powRaw["hash_alg"].(string),
		Difficulty: powRaw["difficulty_k"].(int),
		Nonce:      powRaw["nonce"].(int64),
		DigestHex:  powRaw["digest_hex"].(string),
	}
	if !crypto.VerifyProofOfWork("self-node", pow, 4) {
		t.Fatalf("attached proof of work must verify")
	}
}
