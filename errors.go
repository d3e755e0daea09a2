package cnc

import (
	"context"
	"errors"

	"github.com/TheAlpha16/awg-cnc/link"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

var (
	ErrInvalidCommand        = errors.New("invalid command")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrUnknownDevice         = errors.New("unknown device")
	ErrDuplicateCommand      = errors.New("duplicate command")
	ErrDuplicateDevice       = errors.New("duplicate device")
	ErrMalformedParameters   = errors.New("malformed parameters")
	ErrConnectionWriteFailed = errors.New("connection write failed")
	ErrConnectionTimeout     = errors.New("connection timeout")
	ErrPartialApply          = errors.New("instrument rejected part of the command")
	ErrHandlerTimeout        = errors.New("handler timed out")
	ErrNoRequest             = errors.New("no request received")
	ErrAlreadyReplied        = errors.New("request already replied")
	ErrTransportNotConnected = errors.New("transport not connected")
	ErrServerNotStarted      = errors.New("server not started")
	ErrServerAlreadyStarted  = errors.New("server already started")
)

// ErrorKind returns the taxonomy name of err, as used in logs, metrics and
// the journal.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownCommand):
		return "UnknownCommand"
	case errors.Is(err, ErrUnknownDevice):
		return "UnknownDevice"
	case errors.Is(err, ErrDuplicateCommand):
		return "DuplicateCommand"
	case errors.Is(err, ErrDuplicateDevice):
		return "DuplicateDevice"
	case errors.Is(err, scpi.ErrInvalidEnumIndex):
		return "InvalidEnumIndex"
	case errors.Is(err, scpi.ErrBlockTooLarge):
		return "BlockTooLarge"
	case errors.Is(err, ErrPartialApply):
		return "PartialApply"
	case errors.Is(err, ErrHandlerTimeout):
		return "HandlerTimeout"
	case errors.Is(err, ErrConnectionTimeout), link.IsTimeout(err):
		return "ConnectionTimeout"
	case errors.Is(err, ErrConnectionWriteFailed):
		return "ConnectionWriteFailed"
	case errors.Is(err, ErrMalformedParameters),
		errors.Is(err, ErrInvalidCommand),
		errors.Is(err, scpi.ErrSampleOutOfRange),
		errors.Is(err, scpi.ErrEmptyBlock),
		errors.Is(err, scpi.ErrMissingParameter),
		errors.Is(err, scpi.ErrInvalidNumber):
		return "MalformedParameters"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}
	return "HandlerError"
}
