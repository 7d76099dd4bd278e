package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// maxDatagramSize bounds one notification payload. Device notifications
// are small JSON objects, well under 8 KiB.
const maxDatagramSize = 8 * 1024

// Listener owns the single UDP socket all tracked devices notify. Each
// datagram is parsed and handed to the configured callback together with
// the sender address, on the listener's own goroutine.
type Listener struct {
	addr   string
	handle func(senderIP string, msg eventMessage)
	logger Logger

	mu   sync.Mutex
	conn *net.UDPConn
	done chan struct{}

	malformed atomic.Uint64
	received  atomic.Uint64
}

// NewListener creates a listener bound to addr (host:port) once started.
func NewListener(addr string, handle func(senderIP string, msg eventMessage)) *Listener {
	return &Listener{
		addr:   addr,
		handle: handle,
		logger: noopLogger{},
	}
}

// SetLogger attaches a logger.
func (l *Listener) SetLogger(log Logger) {
	if log != nil {
		l.logger = log
	}
}

// Port returns the bound UDP port. Only valid after Start; it is the port
// advertised to devices via the X-AppPort header.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return 0
	}
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

// Start binds the socket and begins the receive loop. The loop stops when
// ctx is cancelled or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return fmt.Errorf("engine: listener already started on %s", l.addr)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("engine: resolve listen address %q: %w", l.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("engine: bind %q: %w", l.addr, err)
	}

	l.conn = conn
	l.done = make(chan struct{})

	go func() {
		<-ctx.Done()
		l.Stop()
	}()
	go l.receiveLoop(conn, l.done)

	l.logger.Info("event listener started", "addr", conn.LocalAddr().String())
	return nil
}

// Stop closes the socket and waits for the receive loop to exit. Safe to
// call more than once.
func (l *Listener) Stop() {
	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	<-done
}

func (l *Listener) receiveLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("udp receive error", "error", err)
			continue
		}

		l.received.Add(1)
		msg, err := parseDatagram(buf[:n])
		if err != nil {
			// Never fatal. Count it and move on.
			l.malformed.Add(1)
			l.logger.Debug("dropping malformed datagram", "from", addr.IP.String(), "error", err)
			continue
		}
		if len(msg.Events) == 0 {
			continue
		}

		l.handle(addr.IP.String(), msg)
	}
}

// Received reports how many datagrams the listener has read.
func (l *Listener) Received() uint64 { return l.received.Load() }

// Malformed reports how many datagrams failed to parse.
func (l *Listener) Malformed() uint64 { return l.malformed.Load() }
