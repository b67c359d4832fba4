package node

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/AbolfazlSheikhha/gossip-network/src/bootstrap"
	"github.com/AbolfazlSheikhha/gossip-network/src/clock"
	"github.com/AbolfazlSheikhha/gossip-network/src/config"
	"github.com/AbolfazlSheikhha/gossip-network/src/discovery"
	"github.com/AbolfazlSheikhha/gossip-network/src/dispatch"
	"github.com/AbolfazlSheikhha/gossip-network/src/envelope"
	"github.com/AbolfazlSheikhha/gossip-network/src/eventlog"
	"github.com/AbolfazlSheikhha/gossip-network/src/gossip"
	"github.com/AbolfazlSheikhha/gossip-network/src/handshake"
	"github.com/AbolfazlSheikhha/gossip-network/src/liveness"
	gossipnet "github.com/AbolfazlSheikhha/gossip-network/src/net"
	"github.com/AbolfazlSheikhha/gossip-network/src/outbox"
	"github.com/AbolfazlSheikhha/gossip-network/src/peers"
	"github.com/AbolfazlSheikhha/gossip-network/src/pull"
	"github.com/AbolfazlSheikhha/gossip-network/src/rng"
)

// GossipNode owns the UDP endpoint, the peer table, every protocol engine,
// and the single cooperative select loop that drives them. It is the
// concrete realization of the concurrency model's "one logical task
// runner": every field below is touched only from Run's goroutine.
type GossipNode struct {
	cfg      *config.Config
	selfID   string
	selfAddr string

	clock clock.Clock
	table *peers.Table

	transport gossipnet.Transport
	outbox    *outbox.Outbox
	sink      *eventlog.Sink

	dispatchTable *dispatch.Table
	gossipEngine  *gossip.Engine
	pullEngine    *pull.Engine
	livenessSched *liveness.Scheduler
	handshakeH    *handshake.Handler
	bootstrapDrv  *bootstrap.Driver
	discoveryLoop *discovery.Loop

	pingTimer      *ControlTimer
	pullTimer      *ControlTimer
	discoveryTimer *ControlTimer

	shutdownCh chan struct{}
}

// New wires every component described by the node runtime design from cfg.
// It binds the UDP socket and opens the JSONL event sink, but does not yet
// start any loop; call Run for that.
func New(cfg *config.Config) (*GossipNode, error) {
	selfID := uuid.NewString()
	selfAddr := cfg.SelfAddr()

	sink, err := eventlog.New(cfg.LogDir, cfg.Port, selfID, config.LogLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("node: open event sink: %w", err)
	}

	transport, err := gossipnet.NewUDPTransport(fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("node: bind udp transport: %w", err)
	}

	clk := clock.NewSystem()
	rngSrc := rng.New(cfg.Seed)
	table := peers.New(selfAddr, cfg.PeerLimit, int64(cfg.PeerTimeoutS*1000), rngSrc)
	ob := outbox.New(transport, sink)

	gossipEngine := gossip.New(selfID, selfAddr, cfg.Fanout, cfg.TTL, clk, table, ob, sink)
	pullEngine := pull.New(selfID, selfAddr, cfg.Fanout, cfg.IDsMaxIHave, table, gossipEngine, ob, sink, clk.EpochMs)
	livenessSched := liveness.New(selfID, selfAddr, cfg.PingIntervalS, cfg.PeerTimeoutS, clk, table, ob, sink)
	handshakeH := handshake.New(selfID, selfAddr, cfg.PeerLimit, cfg.KPow, clk, table, ob, sink)
	bootstrapDrv := bootstrap.New(selfID, selfAddr, cfg.PeerLimit, cfg.KPow, clk, ob, sink)
	discoveryLoop := discovery.New(selfID, selfAddr, cfg.Fanout, cfg.PeerLimit, clk, table, ob, sink)

	n := &GossipNode{
		cfg:            cfg,
		selfID:         selfID,
		selfAddr:       selfAddr,
		clock:          clk,
		table:          table,
		transport:      transport,
		outbox:         ob,
		sink:           sink,
		gossipEngine:   gossipEngine,
		pullEngine:     pullEngine,
		livenessSched:  livenessSched,
		handshakeH:     handshakeH,
		bootstrapDrv:   bootstrapDrv,
		discoveryLoop:  discoveryLoop,
		pingTimer:      NewFixedControlTimer(),
		pullTimer:      NewFixedControlTimer(),
		discoveryTimer: NewFixedControlTimer(),
		shutdownCh:     make(chan struct{}),
	}
	n.dispatchTable = n.buildDispatchTable()
	return n, nil
}

// SelfID returns the node's opaque UUID identity.
func (n *GossipNode) SelfID() string { return n.selfID }

// SelfAddr returns the advertised ip:port.
func (n *GossipNode) SelfAddr() string { return n.selfAddr }

func (n *GossipNode) buildDispatchTable() *dispatch.Table {
	t := dispatch.New()
	t.Register(envelope.MsgHello, n.handshakeH.HandleHello)
	t.Register(envelope.MsgGetPeers, n.handshakeH.HandleGetPeers)
	t.Register(envelope.MsgPeersList, n.handshakeH.HandlePeersList)
	t.Register(envelope.MsgGossip, n.gossipEngine.HandleGossip)
	t.Register(envelope.MsgPing, n.livenessSched.HandlePing)
	t.Register(envelope.MsgPong, n.livenessSched.HandlePong)
	t.Register(envelope.MsgIHave, n.pullEngine.HandleIHave)
	t.Register(envelope.MsgIWant, n.pullEngine.HandleIWant)
	return t
}

// Run starts the receive loop, the three periodic loops, and the stdin
// origination loop, then blocks until SIGINT/SIGTERM. Reaching EOF on stdin
// only stops origination; the node keeps running. It returns nil on clean
// shutdown.
func (n *GossipNode) Run() error {
	n.transport.Listen()
	go n.pingTimer.Run(n.cfg.PingInterval())
	go n.pullTimer.Run(n.cfg.PullInterval())
	if n.cfg.DiscoveryIntervalS > 0 {
		go n.discoveryTimer.Run(n.cfg.DiscoveryInterval())
	}

	n.bootstrapDrv.Run(n.cfg.BootstrapAddr)

	stdinCh := make(chan string)
	stdinDone := make(chan struct{})
	go readStdin(stdinCh, stdinDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case dgram := <-n.transport.Consumer():
			n.handleDatagram(dgram)

		case line := <-stdinCh:
			n.gossipEngine.Originate(line)

		case <-stdinDone:
			stdinCh = nil

		case <-n.pingTimer.TickCh():
			n.livenessSched.Tick()
			n.pingTimer.Reset(n.cfg.PingInterval())

		case <-n.pullTimer.TickCh():
			n.pullEngine.Tick()
			n.pullTimer.Reset(n.cfg.PullInterval())

		case <-n.discoveryTimerTick():
			n.discoveryLoop.Tick()
			if n.cfg.DiscoveryIntervalS > 0 {
				n.discoveryTimer.Reset(n.cfg.DiscoveryInterval())
			}

		case <-sigCh:
			n.shutdown()
			return nil

		case <-n.shutdownCh:
			return nil
		}
	}
}

// discoveryTimerTick returns a nil channel (which blocks forever in a
// select) when discovery is disabled, matching the "0 disables the
// discovery loop" rule.
func (n *GossipNode) discoveryTimerTick() <-chan struct{} {
	if n.cfg.DiscoveryIntervalS <= 0 {
		return nil
	}
	return n.discoveryTimer.TickCh()
}

func (n *GossipNode) handleDatagram(dgram gossipnet.Datagram) {
	env, reason := envelope.Decode(dgram.Data)
	if reason != envelope.ReasonNone {
		n.logDecodeRejection(dgram.Addr, reason)
		return
	}

	n.sink.Record("recv_ok", map[string]interface{}{
		"from": dgram.Addr, "msg_type": string(env.MsgType), "msg_id": env.MsgID,
	})

	if !n.dispatchTable.Dispatch(dgram.Addr, env) {
		n.sink.Record("recv_unknown_type", map[string]interface{}{
			"from": dgram.Addr, "msg_type": string(env.MsgType),
		})
	}
}

func (n *GossipNode) logDecodeRejection(addr string, reason envelope.RejectReason) {
	switch reason {
	case envelope.ReasonInvalidJSON:
		n.sink.Record("recv_invalid_json", map[string]interface{}{"from": addr})
	case envelope.ReasonUnknownType:
		n.sink.Record("recv_unknown_type", map[string]interface{}{"from": addr})
	default:
		n.sink.Record("recv_invalid_schema", map[string]interface{}{"from": addr, "reason": string(reason)})
	}
}

// Shutdown cancels every periodic loop and closes the transport and event
// sink. It is safe to call at most once.
func (n *GossipNode) shutdown() {
	n.pingTimer.Shutdown()
	n.pullTimer.Shutdown()
	if n.cfg.DiscoveryIntervalS > 0 {
		n.discoveryTimer.Shutdown()
	}
	n.transport.Close()
	n.sink.Close()
}

func readStdin(out chan<- string, done chan<- struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(done)
}
