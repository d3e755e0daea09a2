package cnc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/TheAlpha16/awg-cnc/scpi"
)

type CommandName string

// Status is the reply sent for every request.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Request keys with a fixed meaning; every other key is a command parameter.
const (
	keyCommand    = "cmd"
	keyInstrument = "instrument"
	keyInstr      = "instr"
	keyID         = "id"
	keyReplyTo    = "reply_to"
)

// Request names a command, the instrument to run it on and its parameters.
// On the wire it is one flat JSON object:
//
//	{"cmd": "SetFrequency", "instrument": "Gen1", "freq": 50000, "channel": 1}
type Request struct {
	Command    CommandName
	Instrument string
	Parameters map[string]any

	// ID and ReplyTo are optional routing fields used by queue transports.
	ID      string
	ReplyTo string
}

// MarshalJSON flattens the request into one object.
func (r Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Parameters)+4)
	for k, v := range r.Parameters {
		m[k] = v
	}
	m[keyCommand] = r.Command
	m[keyInstrument] = r.Instrument
	if r.ID != "" {
		m[keyID] = r.ID
	}
	if r.ReplyTo != "" {
		m[keyReplyTo] = r.ReplyTo
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat request object. Numbers are kept as
// json.Number so integers survive unchanged until validation.
func (r *Request) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var req Request
	name, ok := m[keyCommand].(string)
	if !ok || name == "" {
		return fmt.Errorf("%w: missing %q", ErrInvalidCommand, keyCommand)
	}
	req.Command = CommandName(name)
	delete(m, keyCommand)

	for _, key := range []string{keyInstrument, keyInstr} {
		if v, exists := m[key]; exists {
			s, isString := v.(string)
			if !isString {
				return fmt.Errorf("%w: %q must be a string", ErrInvalidCommand, key)
			}
			if req.Instrument == "" {
				req.Instrument = s
			}
			delete(m, key)
		}
	}
	if req.Instrument == "" {
		return fmt.Errorf("%w: missing %q", ErrInvalidCommand, keyInstrument)
	}

	if v, exists := m[keyID]; exists {
		req.ID = fmt.Sprint(v)
		delete(m, keyID)
	}
	if v, exists := m[keyReplyTo]; exists {
		req.ReplyTo, _ = v.(string)
		delete(m, keyReplyTo)
	}

	req.Parameters = m
	*r = req
	return nil
}

// Handler runs a command on an instrument with validated parameters.
type Handler func(ctx context.Context, inst Instrument, params scpi.Params) error

// Descriptor describes one command: its unique name, the instrument
// family it applies to (empty for any), its parameter schema and handler.
type Descriptor struct {
	Name    CommandName
	Family  string
	Params  []ParamSpec
	Handler Handler
}
