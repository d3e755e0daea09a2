package scpi

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// MaxBlockDigits is the largest digit count the single-digit field of a
// definite-length block header can declare.
const MaxBlockDigits = 9

// BlockHeader returns the IEEE-488.2 definite-length block header for n
// payload bytes, e.g. "#216" for 16 bytes.
func BlockHeader(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("scpi: negative block length %d", n)
	}
	count := strconv.Itoa(n)
	if len(count) > MaxBlockDigits {
		return "", fmt.Errorf("%w: %d bytes needs %d length digits", ErrBlockTooLarge, n, len(count))
	}
	return "#" + strconv.Itoa(len(count)) + count, nil
}

// Float32Payload packs samples as little-endian IEEE-754 single precision
// values. Samples must lie in [-1, 1]; anything else is rejected rather
// than clamped. An empty waveform is rejected with ErrEmptyBlock.
func Float32Payload(samples []float32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBlock
	}
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		if math.IsNaN(float64(s)) || s < -1 || s > 1 {
			return nil, fmt.Errorf("%w: sample %d is %v", ErrSampleOutOfRange, i, s)
		}
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf, nil
}

// AppendBlock appends the block header and payload to dst.
func AppendBlock(dst, payload []byte) ([]byte, error) {
	header, err := BlockHeader(len(payload))
	if err != nil {
		return nil, err
	}
	dst = append(dst, header...)
	return append(dst, payload...), nil
}

// Transfer is a binary upload. Block holds the command prefix, the block
// header, the payload and the terminator in one buffer so that it is
// written with a single call. Follow clauses must only be sent after the
// instrument has been told to wait for the block to complete.
type Transfer struct {
	Setup  []string
	Block  []byte
	Follow []string

	// Size is the payload length declared in the block header.
	Size int
}

// NewTransfer builds the contiguous block buffer for prefix and payload.
func NewTransfer(prefix string, payload []byte, terminator string) (Transfer, error) {
	if len(payload) == 0 {
		return Transfer{}, ErrEmptyBlock
	}
	if len(payload)%4 != 0 {
		return Transfer{}, fmt.Errorf("scpi: payload length %d is not a multiple of 4", len(payload))
	}
	buf := make([]byte, 0, len(prefix)+MaxBlockDigits+2+len(payload)+len(terminator))
	buf = append(buf, prefix...)
	buf, err := AppendBlock(buf, payload)
	if err != nil {
		return Transfer{}, err
	}
	buf = append(buf, terminator...)
	return Transfer{Block: buf, Size: len(payload)}, nil
}
