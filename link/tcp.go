package link

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
)

// TCP is a raw SCPI socket connection, as served on port 5025 by most
// LAN instruments.
type TCP struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	opts   Options
	mu     sync.Mutex
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn, opts Options) *TCP {
	opts = opts.withDefaults()
	return &TCP{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriterSize(conn, opts.ChunkSize),
		opts:   opts,
	}
}

// DialTCP connects to an instrument socket.
func DialTCP(ctx context.Context, address string, opts Options) (*TCP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewTCP(conn, opts), nil
}

// Write sends p and flushes it before returning.
func (t *TCP) Write(ctx context.Context, p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.conn.SetWriteDeadline(deadline(ctx, t.opts.WriteTimeout)); err != nil {
		return err
	}
	if _, err := t.writer.Write(p); err != nil {
		return err
	}
	return t.writer.Flush()
}

// ReadLine reads up to the next newline.
func (t *TCP) ReadLine(ctx context.Context) (string, error) {
	if err := t.conn.SetReadDeadline(deadline(ctx, t.opts.ReadTimeout)); err != nil {
		return "", err
	}
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close closes the socket.
func (t *TCP) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the instrument address.
func (t *TCP) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
