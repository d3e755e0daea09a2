package cnc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorHandler is a user-provided callback for failed requests
type ErrorHandler func(ctx context.Context, req Request, err error)
type Option func(*Options)

type Options struct {
	HandlerTimeout time.Duration
	Logger         logrus.FieldLogger
	Metrics        *Metrics
	Journal        Journal
	OnError        ErrorHandler
}

// DefaultHandlerTimeout bounds one handler invocation, including binary
// uploads.
const DefaultHandlerTimeout = 30 * time.Second

func defaultOptions() Options {
	return Options{
		HandlerTimeout: DefaultHandlerTimeout,
		Logger:         logrus.StandardLogger(),
		OnError: func(ctx context.Context, req Request, err error) {
			// Default: no-op
		},
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HandlerTimeout = d
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

func WithJournal(j Journal) Option {
	return func(o *Options) {
		o.Journal = j
	}
}

func WithOnError(handler ErrorHandler) Option {
	return func(o *Options) {
		o.OnError = handler
	}
}
