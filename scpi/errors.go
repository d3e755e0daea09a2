package scpi

import "errors"

var (
	ErrInvalidEnumIndex = errors.New("scpi: invalid enum index")
	ErrBlockTooLarge    = errors.New("scpi: block too large")
	ErrSampleOutOfRange = errors.New("scpi: sample out of range")
	ErrEmptyBlock       = errors.New("scpi: empty block")
	ErrMissingParameter = errors.New("scpi: missing parameter")
	ErrInvalidNumber    = errors.New("scpi: invalid number")
)
