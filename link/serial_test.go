package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// silentPort answers reads from a script and then like a port whose read
// timeout expired with no data.
type silentPort struct {
	mu       sync.Mutex
	chunks   []string
	reads    int
	timeouts []time.Duration
	written  []byte
}

func (p *silentPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *silentPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *silentPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *silentPort) Drain() error { return nil }
func (p *silentPort) Close() error { return nil }

func TestSerialReadLineJoinsChunks(t *testing.T) {
	p := &silentPort{chunks: []string{"ROSC INT,", "10MOUT,ON\r\n+0,\"No", " error\"\n"}}
	s := newSerial(p, Options{ReadTimeout: time.Second})
	ctx := context.Background()

	line, err := s.ReadLine(ctx)
	if err != nil || line != "ROSC INT,10MOUT,ON" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	line, err = s.ReadLine(ctx)
	if err != nil || line != `+0,"No error"` {
		t.Fatalf("second ReadLine = %q, %v", line, err)
	}
}

func TestSerialReadLineSilentPort(t *testing.T) {
	p := &silentPort{}
	s := newSerial(p, Options{ReadTimeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.ReadLine(ctx)
	if !IsTimeout(err) {
		t.Fatalf("ReadLine error = %v, want timeout", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("ReadLine took %s on a silent port", time.Since(start))
	}
	if p.reads != 1 {
		t.Errorf("Expected one empty read before giving up, got %d", p.reads)
	}
	if len(p.timeouts) != 1 || p.timeouts[0] > 50*time.Millisecond {
		t.Errorf("port read timeout = %v, want at most the context deadline", p.timeouts)
	}
}

func TestSerialReadLineCanceled(t *testing.T) {
	p := &silentPort{chunks: []string{"partial"}}
	s := newSerial(p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadLine(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadLine error = %v, want context.Canceled", err)
	}
	if p.reads != 0 {
		t.Errorf("Expected no read on a canceled context, got %d", p.reads)
	}
}

func TestSerialWrite(t *testing.T) {
	p := &silentPort{}
	s := newSerial(p, Options{})
	if err := s.Write(context.Background(), []byte("*RST\n")); err != nil {
		t.Fatal(err)
	}
	if string(p.written) != "*RST\n" {
		t.Errorf("written = %q", p.written)
	}
}
