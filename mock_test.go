package cnc

import (
	"context"
	"sync"
	"time"

	"github.com/TheAlpha16/awg-cnc/scpi"
)

// MockTransport implements the Transport interface for testing
type MockTransport struct {
	mu         sync.RWMutex
	connected  bool
	deliveries chan *Delivery
	replies    chan Status
	closedChan chan struct{}
	once       sync.Once

	// onReply, when set, runs before a reply is queued.
	onReply func(Status)
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected:  true,
		deliveries: make(chan *Delivery, 100),
		replies:    make(chan Status, 100),
		closedChan: make(chan struct{}),
	}
}

func (m *MockTransport) Receive(ctx context.Context) (*Delivery, error) {
	select {
	case d := <-m.deliveries:
		return d, nil
	case <-time.After(10 * time.Millisecond):
		return nil, ErrNoRequest
	case <-m.closedChan:
		return nil, ErrTransportNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MockTransport) Close() error {
	m.once.Do(func() {
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		close(m.closedChan)
	})
	return nil
}

func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Inject queues a request as if it had arrived from a client
func (m *MockTransport) Inject(req Request) {
	m.InjectDelivery(req, nil)
}

// InjectDelivery queues a request with a decode error
func (m *MockTransport) InjectDelivery(req Request, decodeErr error) {
	m.deliveries <- NewDelivery(req, decodeErr, func(ctx context.Context, s Status) error {
		if m.onReply != nil {
			m.onReply(s)
		}
		m.replies <- s
		return nil
	})
}

// Reply waits for the next reply
func (m *MockTransport) Reply(timeout time.Duration) (Status, bool) {
	select {
	case s := <-m.replies:
		return s, true
	case <-time.After(timeout):
		return "", false
	}
}

// mockInstrument records what handlers write
type mockInstrument struct {
	family string

	mu       sync.Mutex
	clauses  []string
	blocks   [][]byte
	writeErr error
	checkErr error
	closed   bool
}

func newMockInstrument(family string) *mockInstrument {
	return &mockInstrument{family: family}
}

func (m *mockInstrument) Family() string { return m.family }

func (m *mockInstrument) WriteClause(ctx context.Context, clause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.clauses = append(m.clauses, clause)
	return nil
}

func (m *mockInstrument) WriteBlock(ctx context.Context, block []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.blocks = append(m.blocks, append([]byte(nil), block...))
	return nil
}

func (m *mockInstrument) WaitComplete(ctx context.Context) error {
	return m.WriteClause(ctx, "*WAI")
}

func (m *mockInstrument) Query(ctx context.Context, q string) (string, error) {
	if err := m.WriteClause(ctx, q); err != nil {
		return "", err
	}
	return `+0,"No error"`, nil
}

func (m *mockInstrument) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockInstrument) Clauses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.clauses...)
}

// checkingInstrument reports checkErr from its error queue
type checkingInstrument struct {
	*mockInstrument
}

func (c checkingInstrument) CheckErrors(ctx context.Context) error {
	return c.checkErr
}

var frequencyTemplate = scpi.Template{
	Header: "C{channel}:BSWV",
	Fields: []scpi.Field{{Key: "FRQ", Value: scpi.Plain("freq")}},
}

func frequencyCommand(family string) Descriptor {
	return Descriptor{
		Name:    "SetFrequency",
		Family:  family,
		Params:  []ParamSpec{Float("freq"), Channel()},
		Handler: Send(frequencyTemplate),
	}
}
