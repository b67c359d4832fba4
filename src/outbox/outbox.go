// Package outbox is the single encode-and-send boundary every handler and
// periodic loop goes through, the way the node runtime's send path is
// described: encode, UDP send, log send_ok or send_error. No component
// reaches the transport directly; they all hold an *outbox.Outbox.
package outbox

import (
	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	gossipnet "github.com/AbolfazlSheikhha/gossip-network/src/net"
)

// Outbox wraps a transport and the event sink shared across every send.
type Outbox struct {
	transport gossipnet.Transport
	sink      *eventlog.Sink
}

// New returns an Outbox writing through transport and logging through sink.
func New(transport gossipnet.Transport, sink *eventlog.Sink) *Outbox {
	return &Outbox{transport: transport, sink: sink}
}

// Send encodes env and writes it to addr, logging send_ok on success or
// send_error on either an encode or transport failure. It never returns an
// error the caller must act on beyond what is already in the log: per the
// error handling design, a send failure is abandoned, not retried.
func (o *Outbox) Send(addr string, env *envelope.Envelope) error {
	data, err := envelope.Encode(env)
	if err != nil {
		o.sink.Record("send_error", logrus.Fields{
			"addr": addr, "msg_type": string(env.MsgType), "error": err.Error(),
		})
		return err
	}

	if err := o.transport.Send(addr, data); err != nil {
		o.sink.Record("send_error", logrus.Fields{
			"addr": addr, "msg_type": string(env.MsgType), "msg_id": env.MsgID, "error": err.Error(),
		})
		return err
	}

	o.sink.Record("send_ok", logrus.Fields{
		"addr": addr, "msg_type": string(env.MsgType), "msg_id": env.MsgID,
	})
	return nil
}
