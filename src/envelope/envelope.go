// Package envelope implements the canonical wire envelope: encoding with a
// canonical JSON codec (mirroring the hashgraph wire encoding in the teacher
// repo, which also reaches for ugorji's codec.JsonHandle instead of the
// standard library encoder) and strict schema validation on decode.
package envelope

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/ugorji/go/codec"
)

// MsgType enumerates the recognized envelope message types.
type MsgType string

// Recognized message types. Any other value is rejected as unknown_type.
const (
	MsgHello     MsgType = "HELLO"
	MsgGetPeers  MsgType = "GET_PEERS"
	MsgPeersList MsgType = "PEERS_LIST"
	MsgGossip    MsgType = "GOSSIP"
	MsgPing      MsgType = "PING"
	MsgPong      MsgType = "PONG"
	MsgIHave     MsgType = "IHAVE"
	MsgIWant     MsgType = "IWANT"
)

var knownTypes = map[MsgType]bool{
	MsgHello: true, MsgGetPeers: true, MsgPeersList: true, MsgGossip: true,
	MsgPing: true, MsgPong: true, MsgIHave: true, MsgIWant: true,
}

// SupportedVersion is the only envelope version this codec accepts.
const SupportedVersion = 1

// MaxRecommendedBytes is the UDP-friendly datagram size guidance from the
// wire format spec. It is advisory: oversized datagrams are not rejected by
// the codec itself, callers constructing outbound gossip should truncate
// `data` to stay under it.
const MaxRecommendedBytes = 1200

// Envelope is the decoded, validated representation of a wire message.
type Envelope struct {
	Version     int                    `json:"version"`
	MsgID       string                 `json:"msg_id"`
	MsgType     MsgType                `json:"msg_type"`
	SenderID    string                 `json:"sender_id"`
	SenderAddr  string                 `json:"sender_addr"`
	TimestampMs int64                  `json:"timestamp_ms"`
	TTL         *int                   `json:"ttl,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
}

// RejectReason names why a datagram failed to decode into a valid Envelope.
// The zero value ReasonNone means decode succeeded.
type RejectReason string

// Reason codes from the error taxonomy (spec error taxonomy section).
const (
	ReasonNone               RejectReason = ""
	ReasonInvalidJSON        RejectReason = "invalid_json"
	ReasonInvalidSchema      RejectReason = "invalid_schema"
	ReasonUnsupportedVersion RejectReason = "unsupported_version"
	ReasonUnknownType        RejectReason = "unknown_type"
	ReasonPayloadInvalid     RejectReason = "payload_invalid"
)

var jsonHandle = func() *codec.JsonHandle {
	jh := &codec.JsonHandle{}
	jh.Canonical = true
	// Nested JSON objects (payload, pow, peers entries) decode as
	// map[string]interface{}, the shape every handler type-asserts.
	jh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return jh
}()

// Encode serializes an Envelope to canonical JSON bytes, the way
// hashgraph.Frame.Marshal does in the teacher repo.
func Encode(e *Envelope) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, jsonHandle)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b.Bytes(), nil
}

// Decode parses and strictly validates a raw datagram. On any violation it
// returns a nil Envelope and a non-empty RejectReason; it never panics and
// never returns an error that would propagate into the caller's receive
// loop — callers log the RejectReason and drop.
func Decode(data []byte) (*Envelope, RejectReason) {
	raw := map[string]interface{}{}
	dec := codec.NewDecoderBytes(data, jsonHandle)
	if err := dec.Decode(&raw); err != nil {
		return nil, ReasonInvalidJSON
	}

	version, ok := asInt(raw["version"])
	if !ok {
		return nil, ReasonInvalidSchema
	}
	if version != SupportedVersion {
		return nil, ReasonUnsupportedVersion
	}

	msgID, ok := raw["msg_id"].(string)
	if !ok || msgID == "" {
		return nil, ReasonInvalidSchema
	}

	msgTypeStr, ok := raw["msg_type"].(string)
	if !ok || msgTypeStr == "" {
		return nil, ReasonInvalidSchema
	}
	msgType := MsgType(msgTypeStr)
	if !knownTypes[msgType] {
		return nil, ReasonUnknownType
	}

	senderID, ok := raw["sender_id"].(string)
	if !ok {
		return nil, ReasonInvalidSchema
	}

	senderAddr, ok := raw["sender_addr"].(string)
	if !ok {
		return nil, ReasonInvalidSchema
	}

	tsRaw, ok := asInt64(raw["timestamp_ms"])
	if !ok {
		return nil, ReasonInvalidSchema
	}

	var ttl *int
	if msgType == MsgGossip {
		n, ok := asInt(raw["ttl"])
		if !ok || n < 0 {
			return nil, ReasonInvalidSchema
		}
		ttl = &n
	}
	// For all other message types, ttl is ignored even if present.

	var payload map[string]interface{}
	switch p := raw["payload"].(type) {
	case map[string]interface{}:
		payload = p
	case nil:
		payload = map[string]interface{}{}
	default:
		return nil, ReasonPayloadInvalid
	}

	return &Envelope{
		Version:     version,
		MsgID:       msgID,
		MsgType:     msgType,
		SenderID:    senderID,
		SenderAddr:  senderAddr,
		TimestampMs: tsRaw,
		TTL:         ttl,
		Payload:     payload,
	}, ReasonNone
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
