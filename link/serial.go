package link

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when an address does not name one.
const DefaultBaudRate = 115200

// port is the part of serial.Port a Serial link uses.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	Drain() error
}

// Serial is an instrument on a serial port or USB virtual COM port.
type Serial struct {
	port    port
	opts    Options
	pending []byte
	buf     []byte
	mu      sync.Mutex
}

func newSerial(p port, opts Options) *Serial {
	opts = opts.withDefaults()
	return &Serial{
		port: p,
		opts: opts,
		buf:  make([]byte, 4096),
	}
}

// OpenSerial opens name at the given baud rate.
func OpenSerial(name string, baud int, opts Options) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	opts = opts.withDefaults()

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input on %s: %w", name, err)
	}

	return newSerial(port, opts), nil
}

// Write sends p and waits for the port to drain. Serial ports have no
// write deadline, so the context is only checked before the write starts.
func (s *Serial) Write(ctx context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return s.port.Drain()
}

// ReadLine reads up to the next newline. The port read timeout is
// shortened to the context deadline, and a read that returns no data
// before it expires is reported as a timeout.
func (s *Serial) ReadLine(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl := deadline(ctx, s.opts.ReadTimeout)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(s.pending[:i])
			s.pending = s.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		remaining := time.Until(dl)
		if remaining <= 0 {
			return "", fmt.Errorf("serial read: %w", os.ErrDeadlineExceeded)
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return "", err
		}
		n, err := s.port.Read(s.buf)
		if n == 0 && err == nil {
			return "", fmt.Errorf("serial read: %w", os.ErrDeadlineExceeded)
		}
		s.pending = append(s.pending, s.buf[:n]...)
		if err != nil {
			return "", fmt.Errorf("serial read: %w", err)
		}
	}
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
