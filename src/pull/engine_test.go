package pull

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/gossip"
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
	events []string
}

func (f *fakeRecorder) Record(event string, fields logrus.Fields) {
	f.events = append(f.events, event)
}

type fakeStore struct {
	seen    map[string]bool
	known   map[string]gossip.StoredMessage
	idOrder []string
}

func (s *fakeStore) Seen(msgID string) bool { return s.seen[msgID] }
func (s *fakeStore) Known(msgID string) (gossip.StoredMessage, bool) {
	m, ok := s.known[msgID]
	return m, ok
}
func (s *fakeStore) Fulfill(msgID string) (*envelope.Envelope, bool) {
	m, ok := s.known[msgID]
	if !ok {
		return nil, false
	}
	ttl := 1
	return &envelope.Envelope{MsgID: m.MsgID, MsgType: envelope.MsgGossip, TTL: &ttl, Payload: map[string]interface{}{"data": m.Data}}, true
}
func (s *fakeStore) KnownIDsMostRecentFirst() []string { return s.idOrder }

func TestTickAdvertisesKnownIDsCappedAtMax(t *testing.T) {
	table := peers.New("127.0.0.1:5000", 10, 60000, rng.New(1))
	table.Upsert("127.0.0.1:5001", 0, func() peers.Record { return peers.Record{} })

	store := &fakeStore{idOrder: []string{"m1", "m2", "m3"}}
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	e := New("self", "127.0.0.1:5000", 3, 2, table, store, sender, rec, func() int64 { return 0 })

	e.Tick()

	if len(sender.sent) != 1 {
		t.Fatalf("expected one IHAVE to the single peer, got %d", len(sender.sent))
	}
	ids := sender.sent[0].env.Payload["ids"].([]interface{})
	if len(ids) != 2 {
		t.Fatalf("expected ids capped to ids_max_ihave=2, got %d", len(ids))
	}
}

func TestHandleIHaveRequestsOnlyMissing(t *testing.T) {
	table := peers.New("127.0.0.1:5000", 10, 60000, rng.New(1))
	store := &fakeStore{seen: map[string]bool{"have1": true}}
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	e := New("self", "127.0.0.1:5000", 3, 32, table, store, sender, rec, func() int64 { return 0 })

	ttl := 0
	env := &envelope.Envelope{
		MsgType: envelope.MsgIHave,
		TTL:     &ttl,
		Payload: map[string]interface{}{"ids": []interface{}{"have1", "missing1", "missing2"}},
	}
	e.HandleIHave("127.0.0.1:5002", env)

	if len(sender.sent) != 1 {
		t.Fatalf("expected one IWANT sent, got %d", len(sender.sent))
	}
	ids := sender.sent[0].env.Payload["ids"].([]interface{})
	if len(ids) != 2 {
		t.Fatalf("expected 2 missing ids requested, got %d", len(ids))
	}
}

func TestHandleIHaveNoMissingSendsNothing(t *testing.T) {
	table := peers.New("127.0.0.1:5000", 10, 60000, rng.New(1))
	store := &fakeStore{seen: map[string]bool{"have1": true}}
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	e := New("self", "127.0.0.1:5000", 3, 32, table, store, sender, rec, func() int64 { return 0 })

	env := &envelope.Envelope{MsgType: envelope.MsgIHave, Payload: map[string]interface{}{"ids": []interface{}{"have1"}}}
	e.HandleIHave("127.0.0.1:5002", env)

	if len(sender.sent) != 0 {
		t.Fatalf("no missing ids should send no IWANT")
	}
}

func TestHandleIWantFulfillsKnownAndIgnoresMissing(t *testing.T) {
	table := peers.New("127.0.0.1:5000", 10, 60000, rng.New(1))
	store := &fakeStore{known: map[string]gossip.StoredMessage{
		"m1": {MsgID: "m1", Data: "hi"},
	}}
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	e := New("self", "127.0.0.1:5000", 3, 32, table, store, sender, rec, func() int64 { return 0 })

	env := &envelope.Envelope{MsgType: envelope.MsgIWant, Payload: map[string]interface{}{"ids": []interface{}{"m1", "unknown"}}}
	e.HandleIWant("127.0.0.1:5002", env)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one fulfillment sent, got %d", len(sender.sent))
	}
	if sender.sent[0].env.TTL == nil || *sender.sent[0].env.TTL != 1 {
		t.Fatalf("fulfillment must carry ttl=1")
	}
	if countEvents(rec.events, "iwant_miss") != 1 {
		t.Fatalf("expected one iwant_miss for the unknown id")
	}
}

func countEvents(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}
