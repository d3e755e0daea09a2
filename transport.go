package cnc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Transport delivers requests to the server and carries replies back.
type Transport interface {
	// Receive waits for the next request. It returns ErrNoRequest when its
	// receive timeout expires with nothing to deliver.
	Receive(ctx context.Context) (*Delivery, error)

	// Close shuts down the transport and releases resources
	Close() error

	// IsConnected returns true if the transport is connected and ready
	IsConnected() bool
}

// ReplyFunc sends a status back to the requester.
type ReplyFunc func(ctx context.Context, status Status) error

// Delivery is one received request and the means to answer it. A request
// that could not be decoded is delivered with Err set so that it is still
// answered.
type Delivery struct {
	Request Request
	Err     error

	reply ReplyFunc
	once  sync.Once
}

// NewDelivery pairs a request with its reply path.
func NewDelivery(req Request, decodeErr error, reply ReplyFunc) *Delivery {
	return &Delivery{Request: req, Err: decodeErr, reply: reply}
}

// Reply sends status. Only the first call has an effect; later calls
// return ErrAlreadyReplied.
func (d *Delivery) Reply(ctx context.Context, status Status) error {
	err := ErrAlreadyReplied
	d.once.Do(func() {
		err = nil
		if d.reply != nil {
			err = d.reply(ctx, status)
		}
	})
	return err
}

// DecodeRequest decodes one request. When the request is invalid it still
// returns whatever routing fields could be read, so that the failure can
// be answered.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var partial struct {
			Command    string `json:"cmd"`
			Instrument string `json:"instrument"`
			ID         any    `json:"id"`
			ReplyTo    string `json:"reply_to"`
		}
		if json.Unmarshal(data, &partial) == nil {
			req.Command = CommandName(partial.Command)
			req.Instrument = partial.Instrument
			req.ReplyTo = partial.ReplyTo
			if partial.ID != nil {
				req.ID = fmt.Sprint(partial.ID)
			}
		}
		if !errors.Is(err, ErrInvalidCommand) {
			err = fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return req, err
	}
	return req, nil
}
