package cnc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"

	"github.com/TheAlpha16/awg-cnc/link"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// CNC is the main interface for command and control
type CNC interface {
	RegisterCommand(desc Descriptor) error
	RegisterDevice(name string, inst Instrument) error
	Dispatch(ctx context.Context, req Request) (Status, error)
	Start(ctx context.Context) error
	Shutdown() error
	IsRunning() bool
	Registry() *Registry
}

// State is a step in the life of one request.
type State int

const (
	StateReceived State = iota
	StateResolving
	StateInvoking
	StateReplying
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateReceived:  "Received",
	StateResolving: "Resolving",
	StateInvoking:  "Invoking",
	StateReplying:  "Replying",
	StateCompleted: "Completed",
	StateFailed:    "Failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const replyTimeout = 5 * time.Second

type cncImpl struct {
	registry  *Registry
	transport Transport
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	mu        sync.RWMutex
}

// RegisterCommand registers a command descriptor with the registry
func (c *cncImpl) RegisterCommand(desc Descriptor) error {
	return c.registry.RegisterCommand(desc)
}

// RegisterDevice registers an instrument with the registry
func (c *cncImpl) RegisterDevice(name string, inst Instrument) error {
	return c.registry.RegisterDevice(name, inst)
}

// Registry returns the registry the server dispatches against.
func (c *cncImpl) Registry() *Registry {
	return c.registry
}

// Start begins receiving requests from the transport
func (c *cncImpl) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrServerAlreadyStarted
	}

	if !c.transport.IsConnected() {
		return ErrTransportNotConnected
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// Start request processing goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.processRequests()
	}()

	c.started = true
	return nil
}

// processRequests receives and answers one request at a time. The next
// request is not received before the previous reply has been sent.
func (c *cncImpl) processRequests() {
	log := c.opts.Logger
	retryDelay := 100 * time.Millisecond

	for {
		if c.ctx.Err() != nil {
			return
		}

		delivery, err := c.transport.Receive(c.ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoRequest):
				continue
			case c.ctx.Err() != nil:
				return
			case errors.Is(err, ErrTransportNotConnected):
				log.Warn("transport closed, stopping request loop")
				return
			}
			log.WithError(err).Warn("receive failed")
			select {
			case <-time.After(retryDelay):
			case <-c.ctx.Done():
				return
			}
			continue
		}

		c.handle(delivery)
	}
}

// handle runs one delivery to completion and sends exactly one reply.
// Shutdown does not cancel a handler that has started: a write the
// instrument has begun receiving cannot be aborted.
func (c *cncImpl) handle(d *Delivery) {
	ctx := context.WithoutCancel(c.ctx)

	var status Status
	if d.Err != nil {
		status = c.finish(ctx, d.Request, time.Now(), d.Err)
	} else {
		status, _ = c.Dispatch(ctx, d.Request)
	}

	c.opts.Logger.WithFields(logrus.Fields{
		"cmd":    d.Request.Command,
		"device": d.Request.Instrument,
		"state":  StateReplying,
	}).Debugf("replying %s", status)

	rctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := d.Reply(rctx, status); err != nil {
		c.opts.Logger.WithError(err).WithField("cmd", d.Request.Command).Error("reply failed")
	}
}

// Dispatch resolves and runs one request and returns the status to reply
// with. Handler errors and panics are returned, never propagated further.
func (c *cncImpl) Dispatch(ctx context.Context, req Request) (Status, error) {
	start := time.Now()
	err := c.dispatch(ctx, req)
	return c.finish(ctx, req, start, err), err
}

func (c *cncImpl) dispatch(ctx context.Context, req Request) error {
	log := c.opts.Logger.WithFields(logrus.Fields{
		"cmd":    req.Command,
		"device": req.Instrument,
	})
	log.WithField("state", StateResolving).Debug("resolving request")

	dev, err := c.registry.ResolveDevice(req.Instrument)
	if err != nil {
		return err
	}
	desc, err := c.registry.ResolveCommand(req.Command)
	if err != nil {
		return err
	}
	if desc.Family != "" && desc.Family != dev.Family() {
		return fmt.Errorf("%w: %s is not available on %s (%s)", ErrUnknownCommand, desc.Name, dev.Name(), dev.Family())
	}
	params, err := desc.Validate(req.Parameters)
	if err != nil {
		return err
	}

	log.WithField("state", StateInvoking).Debug("invoking handler")

	hctx, cancel := context.WithTimeout(ctx, c.opts.HandlerTimeout)
	defer cancel()

	err = dev.Do(func(inst Instrument) error {
		if c.opts.Metrics != nil {
			inst = c.opts.Metrics.instrument(inst)
		}
		return invoke(hctx, desc, inst, params)
	})
	if err == nil {
		return nil
	}

	// A handler that ran out of time outside of instrument I/O, such as
	// in a settle delay, says nothing about the connection.
	if !errors.Is(err, ErrConnectionTimeout) && errors.Is(hctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrHandlerTimeout, c.opts.HandlerTimeout, err)
	}
	if link.IsTimeout(err) || errors.Is(err, ErrConnectionTimeout) {
		if !errors.Is(err, ErrConnectionTimeout) {
			err = fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
		}
		if dev.markSuspect() {
			log.Warn("device connection timed out; it should be closed and reopened")
			if c.opts.Metrics != nil {
				c.opts.Metrics.SuspectDevices.Inc()
			}
		}
	}
	return err
}

func invoke(ctx context.Context, desc *Descriptor, inst Instrument, params scpi.Params) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", desc.Name, r)
		}
	}()
	return desc.Handler(ctx, inst, params)
}

// finish logs, records and converts the outcome of a request to a Status.
func (c *cncImpl) finish(ctx context.Context, req Request, start time.Time, err error) Status {
	elapsed := time.Since(start)
	status := StatusCompleted
	state := StateCompleted
	if err != nil {
		status, state = StatusFailed, StateFailed
	}
	kind := ErrorKind(err)

	log := c.opts.Logger.WithFields(logrus.Fields{
		"cmd":     req.Command,
		"device":  req.Instrument,
		"state":   state,
		"elapsed": elapsed,
	})
	if err != nil {
		log.WithError(err).WithField("kind", kind).Warn("request failed")
		c.opts.OnError(ctx, req, err)
	} else {
		log.Info("request completed")
	}

	if c.opts.Metrics != nil {
		c.opts.Metrics.observe(req, status, kind, elapsed)
	}
	if c.opts.Journal != nil {
		entry := Entry{
			Time:     start,
			Device:   req.Instrument,
			Command:  req.Command,
			Status:   status,
			Kind:     kind,
			Duration: elapsed,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if jerr := c.opts.Journal.Record(ctx, entry); jerr != nil {
			log.WithError(jerr).Debug("journal record failed")
		}
	}
	return status
}

// IsRunning returns true if the CNC instance is currently running
func (c *cncImpl) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Shutdown stops the request loop and closes the transport. The registry
// and its devices stay open.
func (c *cncImpl) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	// Cancel context to stop all operations
	c.cancel()

	// Let the loop answer the request it is handling
	c.wg.Wait()

	err := c.transport.Close()

	c.started = false
	return err
}

// NewCNC creates a server dispatching requests from transport against
// registry.
func NewCNC(registry *Registry, transport Transport, opts ...Option) CNC {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if registry == nil {
		registry = NewRegistry(options.Logger)
	}
	return &cncImpl{
		registry:  registry,
		transport: transport,
		opts:      options,
		ctx:       context.Background(),
		cancel:    func() {},
	}
}

// NewCNCWithValkey creates a server receiving requests from a Valkey queue
func NewCNCWithValkey(client valkey.Client, queue string, registry *Registry, opts ...Option) CNC {
	return NewCNC(registry, NewValkeyTransport(client, queue), opts...)
}

// NewCNCWithValkeyAddress creates a server with a Valkey transport using an address
func NewCNCWithValkeyAddress(address, queue string, registry *Registry, opts ...Option) (CNC, error) {
	client, err := NewValkeyClient(address)
	if err != nil {
		return nil, err
	}
	return NewCNCWithValkey(client, queue, registry, opts...), nil
}
