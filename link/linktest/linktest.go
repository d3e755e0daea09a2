// Package linktest provides a recording link for tests.
package linktest

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Recorder is a link.Link that records every write and answers reads from
// a scripted queue.
type Recorder struct {
	mu        sync.Mutex
	writes    [][]byte
	responses []string
	closed    bool

	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// NewRecorder returns a Recorder that answers reads with responses in order.
func NewRecorder(responses ...string) *Recorder {
	return &Recorder{responses: responses}
}

// Write records a copy of p.
func (r *Recorder) Write(ctx context.Context, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("linktest: write on closed link")
	}
	if r.WriteErr != nil {
		return r.WriteErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.writes = append(r.writes, append([]byte(nil), p...))
	return nil
}

// ReadLine pops the next scripted response, or io.EOF when none remain.
func (r *Recorder) ReadLine(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.responses) == 0 {
		return "", io.EOF
	}
	line := r.responses[0]
	r.responses = r.responses[1:]
	return line, nil
}

// Close marks the link closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Respond queues more read responses.
func (r *Recorder) Respond(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, lines...)
}

// Writes returns a copy of every recorded write.
func (r *Recorder) Writes() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.writes))
	copy(out, r.writes)
	return out
}

// Lines returns the recorded writes as strings.
func (r *Recorder) Lines() []string {
	writes := r.Writes()
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = string(w)
	}
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
