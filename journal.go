package cnc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the journal record of one handled request.
type Entry struct {
	Time     time.Time     `json:"time"`
	Device   string        `json:"device"`
	Command  CommandName   `json:"cmd"`
	Status   Status        `json:"status"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Journal records handled requests.
type Journal interface {
	Record(ctx context.Context, e Entry) error
}

// RedisJournal publishes every entry on a channel and keeps a bounded
// history list per device.
type RedisJournal struct {
	client  *redis.Client
	channel string
	history int64
}

// DefaultJournalHistory is the number of entries kept per device.
const DefaultJournalHistory = 1000

// NewRedisJournal connects to Redis and checks the connection.
func NewRedisJournal(ctx context.Context, opts *redis.Options, channel string, history int) (*RedisJournal, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect journal redis %s: %w", opts.Addr, err)
	}
	if history <= 0 {
		history = DefaultJournalHistory
	}
	return &RedisJournal{client: client, channel: channel, history: int64(history)}, nil
}

// HistoryKey is the list holding the history of device.
func HistoryKey(device string) string {
	return fmt.Sprintf("awg:%s:history", device)
}

// Record publishes e and prepends it to the device history.
func (j *RedisJournal) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	key := HistoryKey(e.Device)
	pipe := j.client.TxPipeline()
	if j.channel != "" {
		pipe.Publish(ctx, j.channel, data)
	}
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, j.history-1)
	_, err = pipe.Exec(ctx)
	return err
}

// History returns up to n of the latest entries for device, newest first.
func (j *RedisJournal) History(ctx context.Context, device string, n int) ([]Entry, error) {
	raw, err := j.client.LRange(ctx, HistoryKey(device), 0, int64(n)-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the Redis connection.
func (j *RedisJournal) Close() error {
	return j.client.Close()
}
