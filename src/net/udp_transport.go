package net

import (
	"net"
	"sync"
)

// UDPTransport is the production Transport, one *net.UDPConn shared by the
// receive loop and every outbound Send.
type UDPTransport struct {
	conn       *net.UDPConn
	localAddr  string
	consumerCh chan Datagram
	shutdownCh chan struct{}
	shutdown   bool
	shutdownMu sync.Mutex
}

// NewUDPTransport binds bindAddr (e.g. "0.0.0.0:5000") and returns a
// Transport ready for Listen.
func NewUDPTransport(bindAddr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{
		conn:       conn,
		localAddr:  conn.LocalAddr().String(),
		consumerCh: make(chan Datagram, 256),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Listen starts the background receive goroutine.
func (t *UDPTransport) Listen() {
	go t.listen()
}

func (t *UDPTransport) listen() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.consumerCh <- Datagram{Addr: addr.String(), Data: data}:
		case <-t.shutdownCh:
			return
		}
	}
}

// Consumer implements Transport.
func (t *UDPTransport) Consumer() <-chan Datagram {
	return t.consumerCh
}

// LocalAddr implements Transport.
func (t *UDPTransport) LocalAddr() string {
	return t.localAddr
}

// Send implements Transport.
func (t *UDPTransport) Send(addr string, data []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteToUDP(data, udpAddr)
	return err
}

// Close implements Transport. Idempotent.
func (t *UDPTransport) Close() error {
	t.shutdownMu.Lock()
	defer t.shutdownMu.Unlock()
	if t.shutdown {
		return nil
	}
	t.shutdown = true
	close(t.shutdownCh)
	return t.conn.Close()
}
