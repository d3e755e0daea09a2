package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	cnc "github.com/TheAlpha16/awg-cnc"
)

// parseLine turns one input line into a request. A line is either a JSON
// request object or a command name followed by key=value pairs:
//
//	SetFrequency freq=50000 channel=1
//	UploadWaveform instrument=Gen2 name=tst samples=[0,1,-1,0.5]
//
// Values are decoded as JSON when possible and kept as strings otherwise.
// The instrument defaults to device when not given.
func parseLine(line, device string) (cnc.Request, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var req cnc.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return cnc.Request{}, err
		}
		return req, nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return cnc.Request{}, errors.New("empty request")
	}

	req := cnc.Request{
		Command:    cnc.CommandName(fields[0]),
		Instrument: device,
		Parameters: make(map[string]any),
	}
	for _, f := range fields[1:] {
		key, raw, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return cnc.Request{}, fmt.Errorf("expected key=value, got %q", f)
		}
		switch key {
		case "instrument", "instr":
			req.Instrument = raw
			continue
		}
		req.Parameters[key] = parseValue(raw)
	}
	if req.Instrument == "" {
		return cnc.Request{}, errors.New("no instrument: pass instrument=<name> or run 'use <name>'")
	}
	return req, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}
