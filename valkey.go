package cnc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	// DefaultReceiveTimeout is how long one Receive blocks on the queue.
	DefaultReceiveTimeout = time.Second

	// DefaultReplyTTL is the lifetime of an unread reply list.
	DefaultReplyTTL = time.Minute
)

// ValkeyTransport receives requests from a Valkey list and pushes each
// reply to the list named by the request's reply_to, or to
// "<queue>:replies" when it has none.
type ValkeyTransport struct {
	client         valkey.Client
	queue          string
	receiveTimeout time.Duration
	replyTTL       time.Duration
	mu             sync.RWMutex
	connected      bool
	once           sync.Once
}

// ValkeyOption configures a ValkeyTransport.
type ValkeyOption func(*ValkeyTransport)

// WithReceiveTimeout sets how long Receive blocks before returning
// ErrNoRequest.
func WithReceiveTimeout(d time.Duration) ValkeyOption {
	return func(v *ValkeyTransport) {
		if d > 0 {
			v.receiveTimeout = d
		}
	}
}

// WithReplyTTL sets the expiry of reply lists.
func WithReplyTTL(d time.Duration) ValkeyOption {
	return func(v *ValkeyTransport) {
		if d > 0 {
			v.replyTTL = d
		}
	}
}

// ReplyQueue is the default reply list for queue.
func ReplyQueue(queue string) string {
	return queue + ":replies"
}

// Receive pops the next request from the queue.
func (v *ValkeyTransport) Receive(ctx context.Context) (*Delivery, error) {
	if !v.IsConnected() {
		return nil, ErrTransportNotConnected
	}

	cmd := v.client.B().Blpop().Key(v.queue).Timeout(v.receiveTimeout.Seconds()).Build()
	kv, err := v.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNoRequest
		}
		if !v.IsConnected() {
			return nil, ErrTransportNotConnected
		}
		return nil, err
	}
	if len(kv) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(kv))
	}

	req, decodeErr := DecodeRequest([]byte(kv[1]))
	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = ReplyQueue(v.queue)
	}
	return NewDelivery(req, decodeErr, func(ctx context.Context, status Status) error {
		return v.reply(ctx, replyTo, status)
	}), nil
}

func (v *ValkeyTransport) reply(ctx context.Context, key string, status Status) error {
	if !v.IsConnected() {
		return ErrTransportNotConnected
	}
	results := v.client.DoMulti(ctx,
		v.client.B().Rpush().Key(key).Element(string(status)).Build(),
		v.client.B().Expire().Key(key).Seconds(int64(v.replyTTL.Seconds())).Build(),
	)
	for _, r := range results {
		if err := r.Error(); err != nil {
			return fmt.Errorf("reply to %s: %w", key, err)
		}
	}
	return nil
}

// Close shuts down the valkey transport and cleans up resources
func (v *ValkeyTransport) Close() error {
	v.once.Do(func() {
		v.mu.Lock()
		v.connected = false
		v.mu.Unlock()
		v.client.Close()
	})
	return nil
}

// IsConnected returns true if the transport is connected and ready
func (v *ValkeyTransport) IsConnected() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.connected
}

// NewValkeyTransport creates a transport reading requests from queue.
// The transport owns client and closes it on Close.
func NewValkeyTransport(client valkey.Client, queue string, opts ...ValkeyOption) *ValkeyTransport {
	v := &ValkeyTransport{
		client:         client,
		queue:          queue,
		receiveTimeout: DefaultReceiveTimeout,
		replyTTL:       DefaultReplyTTL,
		connected:      true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewValkeyClient creates a new valkey client with common configuration
func NewValkeyClient(address string, options ...valkey.ClientOption) (valkey.Client, error) {
	var clientOption valkey.ClientOption
	if len(options) > 0 {
		clientOption = options[0]
	}
	if len(clientOption.InitAddress) == 0 {
		clientOption.InitAddress = []string{address}
	}
	return valkey.NewClient(clientOption)
}

// ValkeyClient submits requests to a server's queue and waits for the
// reply on a private list.
type ValkeyClient struct {
	client valkey.Client
	queue  string
}

// NewValkeyRequester wraps client for sending requests to queue.
func NewValkeyRequester(client valkey.Client, queue string) *ValkeyClient {
	return &ValkeyClient{client: client, queue: queue}
}

// Send pushes req and waits for its status. The wait ends with ctx; a
// context without deadline waits at most DefaultReplyTTL.
func (c *ValkeyClient) Send(ctx context.Context, req Request) (Status, error) {
	if req.ID == "" {
		req.ID = newRequestID()
	}
	if req.ReplyTo == "" {
		req.ReplyTo = fmt.Sprintf("%s:reply:%s", c.queue, req.ID)
	}

	wait, err := replyWait(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	push := c.client.B().Rpush().Key(c.queue).Element(string(data)).Build()
	if err := c.client.Do(ctx, push).Error(); err != nil {
		return "", fmt.Errorf("push request: %w", err)
	}

	pop := c.client.B().Blpop().Key(req.ReplyTo).Timeout(wait.Seconds()).Build()
	kv, err := c.client.Do(ctx, pop).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", fmt.Errorf("%w: no reply for %s within %s", ErrConnectionTimeout, req.ID, wait)
		}
		return "", fmt.Errorf("wait for reply: %w", err)
	}
	if len(kv) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply of %d elements", len(kv))
	}
	return Status(kv[1]), nil
}

// Close closes the underlying client.
func (c *ValkeyClient) Close() error {
	c.client.Close()
	return nil
}

// minReplyWait keeps the BLPOP timeout positive; zero would block forever.
const minReplyWait = 10 * time.Millisecond

// replyWait is how long Send blocks for a reply under ctx.
func replyWait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return DefaultReplyTTL, nil
	}
	wait := time.Until(dl)
	if wait <= 0 {
		return 0, context.DeadlineExceeded
	}
	return max(wait, minReplyWait), nil
}

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
