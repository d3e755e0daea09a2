package cnc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxRequestSize bounds one request line, enough for a JSON-encoded
// waveform of a few hundred thousand samples.
const MaxRequestSize = 16 << 20

// TCPTransport accepts newline-delimited JSON requests on a TCP listener
// and answers each with its status on one line. A connection sends its
// next request only after the previous one has been answered.
type TCPTransport struct {
	listener       net.Listener
	log            logrus.FieldLogger
	receiveTimeout time.Duration
	writeTimeout   time.Duration
	limiter        chan struct{}
	deliveries     chan *Delivery
	closed         chan struct{}
	once           sync.Once
	wg             sync.WaitGroup
	mu             sync.Mutex
	conns          map[net.Conn]struct{}
}

// TCPOptions configures a TCPTransport.
type TCPOptions struct {
	MaxConnections int
	ReceiveTimeout time.Duration
	WriteTimeout   time.Duration
	Logger         logrus.FieldLogger
}

// NewTCPTransport listens on addr and starts accepting connections.
func NewTCPTransport(ctx context.Context, addr string, opts TCPOptions) (*TCPTransport, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ServeTCP(l, opts), nil
}

// ServeTCP serves requests from an existing listener.
func ServeTCP(l net.Listener, opts TCPOptions) *TCPTransport {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 64
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	t := &TCPTransport{
		listener:       l,
		log:            opts.Logger,
		receiveTimeout: opts.ReceiveTimeout,
		writeTimeout:   opts.WriteTimeout,
		limiter:        make(chan struct{}, opts.MaxConnections),
		deliveries:     make(chan *Delivery),
		closed:         make(chan struct{}),
		conns:          make(map[net.Conn]struct{}),
	}
	t.wg.Add(1)
	go t.accept()
	return t
}

// Addr returns the listener address.
func (t *TCPTransport) Addr() net.Addr {
	return t.listener.Addr()
}

func (t *TCPTransport) accept() {
	defer t.wg.Done()
	t.log.Infof("accepting requests on %s", t.listener.Addr())

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.WithError(err).Error("accept failed")
			continue
		}

		select {
		case t.limiter <- struct{}{}:
			t.track(conn, true)
			t.wg.Add(1)
			go t.serve(conn)
		default:
			t.log.WithField("remote", conn.RemoteAddr()).Warn("connection limit reached, rejecting")
			conn.Close()
		}
	}
}

func (t *TCPTransport) track(conn net.Conn, add bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if add {
		t.conns[conn] = struct{}{}
	} else {
		delete(t.conns, conn)
	}
}

// serve reads requests from one connection. Each is handed to Receive and
// the next line is read only after the reply has been written.
func (t *TCPTransport) serve(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log := t.log.WithField("remote", remote)
	defer func() {
		conn.Close()
		t.track(conn, false)
		<-t.limiter
		t.wg.Done()
		log.Debug("connection closed")
	}()
	log.Debug("connection opened")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxRequestSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req, decodeErr := DecodeRequest([]byte(line))
		replied := make(chan struct{})
		d := NewDelivery(req, decodeErr, func(ctx context.Context, status Status) error {
			defer close(replied)
			deadline := time.Now().Add(t.writeTimeout)
			if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
				deadline = dl
			}
			if err := conn.SetWriteDeadline(deadline); err != nil {
				return fmt.Errorf("set reply deadline: %w", err)
			}
			_, err := fmt.Fprintf(conn, "%s\n", status)
			return err
		})

		select {
		case t.deliveries <- d:
		case <-t.closed:
			return
		}
		select {
		case <-replied:
		case <-t.closed:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Debug("read failed")
	}
}

// Receive returns the next request from any connection.
func (t *TCPTransport) Receive(ctx context.Context) (*Delivery, error) {
	timer := time.NewTimer(t.receiveTimeout)
	defer timer.Stop()

	select {
	case d := <-t.deliveries:
		return d, nil
	case <-timer.C:
		return nil, ErrNoRequest
	case <-t.closed:
		return nil, ErrTransportNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting, drops open connections and waits for their
// goroutines.
func (t *TCPTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.listener.Close()
		t.mu.Lock()
		for c := range t.conns {
			c.Close()
		}
		t.mu.Unlock()
		t.wg.Wait()
	})
	return err
}

// IsConnected reports whether the transport is still accepting requests.
func (t *TCPTransport) IsConnected() bool {
	select {
	case <-t.closed:
		return false
	default:
		return true
	}
}

// TCPClient sends requests to a TCPTransport, one at a time.
type TCPClient struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// DialTCPClient connects to a server listening on addr.
func DialTCPClient(ctx context.Context, addr string) (*TCPClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPClient{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Send writes req and waits for its status until ctx is done.
func (c *TCPClient) Send(ctx context.Context, req Request) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var dl time.Time
	if d, ok := ctx.Deadline(); ok {
		dl = d
	}
	if err := c.conn.SetDeadline(dl); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return Status(strings.TrimSpace(line)), nil
}

// Close closes the connection.
func (c *TCPClient) Close() error {
	return c.conn.Close()
}
