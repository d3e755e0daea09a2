package siglent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/query"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// RefClockSettle is how long the generator needs to lock onto a newly
// selected reference before ROSC? reports the new state.
var RefClockSettle = 3 * time.Second

// refClock selects the 10 MHz reference input and sets the reference
// output to the requested state. The output can only be toggled from the
// front panel, so it is flipped through virtual key presses when needed.
func refClock(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	source := "EXT"
	if p.Bool("ref_source") {
		source = "INT"
	}
	if err := inst.WriteClause(ctx, "ROSC "+source); err != nil {
		return err
	}
	if err := cnc.Sleep(ctx, RefClockSettle); err != nil {
		return err
	}

	q := cnc.Querier(ctx, inst)
	state, err := query.String(q, "ROSC?")
	if err != nil {
		return err
	}
	if strings.Contains(state, "10MOUT,ON") != p.Bool("ref_out") {
		for _, key := range []string{"VKEY VALUE,18,STATE,1", "VKEY VALUE,23,STATE,1"} {
			if err := inst.WriteClause(ctx, key); err != nil {
				return err
			}
		}
	}
	return cnc.CheckErrors(ctx, inst)
}

func uploadWaveform(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	name := p.String("name")
	if name == "" || strings.ContainsAny(name, ", \t\r\n;") {
		return fmt.Errorf("%w: invalid waveform name %q", cnc.ErrMalformedParameters, name)
	}
	ch := p.Int("channel")

	payload, err := scpi.Float32Payload(p.Samples("samples"))
	if err != nil {
		return err
	}
	t, err := scpi.NewTransfer(fmt.Sprintf("C%d:WVDT WVNM,%s,WAVEDATA,", ch, name), payload, "")
	if err != nil {
		return err
	}
	t.Follow = append(t.Follow, fmt.Sprintf("C%d:ARWV NAME,%s", ch, name))
	if p.Has("sample_rate") {
		t.Follow = append(t.Follow, fmt.Sprintf("C%d:BSWV SRATE,%s", ch,
			scpi.FormatPrecision(p.Float("sample_rate"), SampleRateDigits)))
	}
	return cnc.Upload(ctx, inst, t)
}
