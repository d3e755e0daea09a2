// Package instrument implements the cnc.Instrument capability set for
// SCPI instruments reached over a link.
package instrument

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotmc/query"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/link"
)

// DefaultErrorQuery reads one entry of the instrument error queue.
const DefaultErrorQuery = "SYST:ERR?"

// maxErrorReads bounds how many queued errors CheckErrors drains.
const maxErrorReads = 16

// Config describes the SCPI dialect of an instrument family.
type Config struct {
	Family string

	// Terminator ends every program message. Defaults to "\n".
	Terminator string

	// SyncDirective is written by WaitComplete. Defaults to "*WAI".
	SyncDirective string

	// ErrorQuery, when set, is issued after every command to verify that
	// all clauses were accepted.
	ErrorQuery string
}

// SCPI is a generic SCPI instrument.
type SCPI struct {
	link link.Link
	cfg  Config
	log  logrus.FieldLogger
}

// New wraps l. The instrument owns l and closes it on Close.
func New(l link.Link, cfg Config, log logrus.FieldLogger) *SCPI {
	if cfg.Terminator == "" {
		cfg.Terminator = "\n"
	}
	if cfg.SyncDirective == "" {
		cfg.SyncDirective = "*WAI"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SCPI{
		link: l,
		cfg:  cfg,
		log:  log.WithField("family", cfg.Family),
	}
}

// Family returns the configured family name.
func (s *SCPI) Family() string { return s.cfg.Family }

// WriteClause writes clause followed by the terminator in one write.
func (s *SCPI) WriteClause(ctx context.Context, clause string) error {
	s.log.Debugf("[SENT] %s", clause)
	return s.write(ctx, []byte(clause+s.cfg.Terminator))
}

// WriteBlock writes a prepared transfer buffer as is.
func (s *SCPI) WriteBlock(ctx context.Context, block []byte) error {
	s.log.Debugf("[SENT] %d byte block", len(block))
	return s.write(ctx, block)
}

func (s *SCPI) write(ctx context.Context, p []byte) error {
	if err := s.link.Write(ctx, p); err != nil {
		if link.IsTimeout(err) {
			return fmt.Errorf("%w: %v", cnc.ErrConnectionTimeout, err)
		}
		return fmt.Errorf("%w: %v", cnc.ErrConnectionWriteFailed, err)
	}
	return nil
}

// WaitComplete writes the synchronization directive.
func (s *SCPI) WaitComplete(ctx context.Context) error {
	return s.WriteClause(ctx, s.cfg.SyncDirective)
}

// Query writes q and reads one response line.
func (s *SCPI) Query(ctx context.Context, q string) (string, error) {
	if err := s.WriteClause(ctx, q); err != nil {
		return "", err
	}
	line, err := s.link.ReadLine(ctx)
	if err != nil {
		if link.IsTimeout(err) {
			return "", fmt.Errorf("%w: reading reply to %s: %v", cnc.ErrConnectionTimeout, q, err)
		}
		return "", fmt.Errorf("read reply to %s: %w", q, err)
	}
	return strings.TrimSpace(line), nil
}

// CheckErrors drains the instrument error queue. Any queued error means
// some clause of the last command was rejected and yields ErrPartialApply.
func (s *SCPI) CheckErrors(ctx context.Context) error {
	if s.cfg.ErrorQuery == "" {
		return nil
	}

	q := cnc.Querier(ctx, s)
	var errs error
	for range maxErrorReads {
		resp, err := query.String(q, s.cfg.ErrorQuery)
		if err != nil {
			return multierr.Append(errs, err)
		}
		code, msg := ParseError(resp)
		if code == 0 {
			break
		}
		s.log.WithField("code", code).Warnf("instrument error: %s", msg)
		errs = multierr.Append(errs, fmt.Errorf("%w: %d %s", cnc.ErrPartialApply, code, msg))
	}
	return errs
}

// Close closes the link.
func (s *SCPI) Close() error {
	return s.link.Close()
}

// ParseError splits an error queue entry such as `-113,"Undefined header"`
// into its code and message. An unparsable entry reports code -1.
func ParseError(resp string) (int, string) {
	code, msg, _ := strings.Cut(strings.TrimSpace(resp), ",")
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(code), "+"))
	if err != nil {
		return -1, resp
	}
	return n, strings.Trim(strings.TrimSpace(msg), `"`)
}
