package cnc

import (
	"context"
	"fmt"
	"time"

	"github.com/TheAlpha16/awg-cnc/scpi"
)

// Send returns a handler that builds t from the request parameters and
// writes it as one program message. Instruments that implement
// ErrorChecker are asked afterwards whether every clause was accepted.
func Send(t scpi.Template) Handler {
	return func(ctx context.Context, inst Instrument, p scpi.Params) error {
		msg, err := t.Build(p)
		if err != nil {
			return err
		}
		return WriteMessage(ctx, inst, msg)
	}
}

// SendAll runs several templates in order, one write each.
func SendAll(ts ...scpi.Template) Handler {
	return func(ctx context.Context, inst Instrument, p scpi.Params) error {
		for _, t := range ts {
			msg, err := t.Build(p)
			if err != nil {
				return err
			}
			if len(msg) == 0 {
				continue
			}
			if err := WriteMessage(ctx, inst, msg); err != nil {
				return err
			}
		}
		return nil
	}
}

// Write returns a handler that writes fixed clauses, one write each.
func Write(clauses ...string) Handler {
	return func(ctx context.Context, inst Instrument, _ scpi.Params) error {
		for _, c := range clauses {
			if err := inst.WriteClause(ctx, c); err != nil {
				return err
			}
		}
		return CheckErrors(ctx, inst)
	}
}

// WriteMessage writes msg in a single write and checks for rejected
// clauses when the instrument supports it.
func WriteMessage(ctx context.Context, inst Instrument, msg scpi.Message) error {
	if err := inst.WriteClause(ctx, msg.String()); err != nil {
		return err
	}
	return CheckErrors(ctx, inst)
}

// CheckErrors asks inst whether every clause since the last check was
// accepted. Instruments that are not ErrorCheckers always pass.
func CheckErrors(ctx context.Context, inst Instrument) error {
	if ec, ok := inst.(ErrorChecker); ok {
		return ec.CheckErrors(ctx)
	}
	return nil
}

// Upload executes a binary transfer: setup clauses, the block in one
// write, the synchronization directive, then the follow-up clauses, and
// finally the error check.
func Upload(ctx context.Context, inst Instrument, t scpi.Transfer) error {
	if t.Size == 0 {
		return fmt.Errorf("%w: empty transfer", ErrMalformedParameters)
	}
	for _, c := range t.Setup {
		if err := inst.WriteClause(ctx, c); err != nil {
			return fmt.Errorf("upload setup %q: %w", c, err)
		}
	}
	if err := inst.WriteBlock(ctx, t.Block); err != nil {
		return fmt.Errorf("upload %d byte block: %w", t.Size, err)
	}
	if err := inst.WaitComplete(ctx); err != nil {
		return fmt.Errorf("upload sync: %w", err)
	}
	for _, c := range t.Follow {
		if err := inst.WriteClause(ctx, c); err != nil {
			return fmt.Errorf("upload follow-up %q: %w", c, err)
		}
	}
	return CheckErrors(ctx, inst)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
