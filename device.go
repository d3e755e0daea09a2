package cnc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gotmc/query"
)

// Instrument is the capability set a command handler may use. Each
// instrument family implements it over its own connection.
type Instrument interface {
	// Family names the command vocabulary the instrument understands.
	Family() string

	// WriteClause writes one program message, terminated.
	WriteClause(ctx context.Context, clause string) error

	// WriteBlock writes a prepared binary transfer buffer in one write.
	WriteBlock(ctx context.Context, block []byte) error

	// WaitComplete tells the instrument to finish pending operations
	// before parsing further commands.
	WaitComplete(ctx context.Context) error

	// Query writes a query and returns the response line.
	Query(ctx context.Context, q string) (string, error)

	// Close releases the connection.
	Close() error
}

// ErrorChecker is implemented by instruments that can report whether the
// last command was accepted. CheckErrors returns ErrPartialApply when the
// instrument error queue is not empty.
type ErrorChecker interface {
	CheckErrors(ctx context.Context) error
}

// Device is a registered instrument. It owns the instrument connection and
// serializes access to it: a half-written clause interleaved with another
// command corrupts the instrument parser.
type Device struct {
	name    string
	inst    Instrument
	mu      sync.Mutex
	suspect atomic.Bool
}

// Name returns the registered device name.
func (d *Device) Name() string { return d.name }

// Family returns the instrument family.
func (d *Device) Family() string { return d.inst.Family() }

// Instrument returns the underlying instrument. Callers outside the server
// must hold the device with Do.
func (d *Device) Instrument() Instrument { return d.inst }

// Do runs fn with exclusive use of the instrument.
func (d *Device) Do(fn func(Instrument) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.inst)
}

// Suspect reports whether the connection timed out and should be reopened.
func (d *Device) Suspect() bool { return d.suspect.Load() }

func (d *Device) markSuspect() bool { return !d.suspect.Swap(true) }

// Querier adapts inst to the gotmc query helpers for the duration of ctx.
func Querier(ctx context.Context, inst Instrument) query.Querier {
	return querier{ctx: ctx, inst: inst}
}

type querier struct {
	ctx  context.Context
	inst Instrument
}

func (q querier) Query(s string) (string, error) {
	return q.inst.Query(q.ctx, s)
}
