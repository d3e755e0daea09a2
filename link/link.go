// Package link provides byte stream connections to instruments.
package link

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// Link is an open duplex byte channel to one instrument.
type Link interface {
	// Write sends p in a single write. A write is never split by the link.
	Write(ctx context.Context, p []byte) error

	// ReadLine reads one terminated response line, without the terminator.
	ReadLine(ctx context.Context) (string, error)

	// Close releases the connection.
	Close() error
}

// Options configures a Link.
type Options struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// ChunkSize is the write buffer size. A block upload no larger than
	// ChunkSize leaves the host in one write.
	ChunkSize int
}

// Defaults sized for binary waveform uploads.
const (
	DefaultWriteTimeout = 20 * time.Second
	DefaultReadTimeout  = 10 * time.Second
	DefaultChunkSize    = 4 * 1024 * 1024
)

// DefaultOptions returns Options suitable for waveform uploads.
func DefaultOptions() Options {
	return Options{
		WriteTimeout: DefaultWriteTimeout,
		ReadTimeout:  DefaultReadTimeout,
		ChunkSize:    DefaultChunkSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// deadline returns the earlier of now+timeout and the context deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
