package keysight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/query"
	"go.uber.org/multierr"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// InitializeSettle is the pause after each step of A33Initialize.
var InitializeSettle = 500 * time.Millisecond

const clearDisplay = "DISP:TEXT ''"

func actions() []cnc.Descriptor {
	return []cnc.Descriptor{
		{
			Name:    "A33Initialize",
			Family:  Family,
			Params:  []cnc.ParamSpec{cnc.Bool("reset").WithDefault(false)},
			Handler: initialize,
		},
		{
			Name:    "A33PhaseSync",
			Family:  Family,
			Handler: cnc.Write("SOUR1:PHAS:SYNC"),
		},
		{
			Name:    "A33ArbPhaseSync",
			Family:  Family,
			Handler: cnc.Write("FUNC:ARB:SYNC"),
		},
		{
			Name:    "A33Trg",
			Family:  Family,
			Handler: cnc.Write("*TRG"),
		},
		{
			Name:   "A33ClearArbitrary",
			Family: Family,
			Params: []cnc.ParamSpec{cnc.Channel().WithDefault(1)},
			Handler: cnc.Send(scpi.Template{
				Header: source,
				Style:  scpi.Chained,
				Fields: []scpi.Field{{Key: "DATA:VOL:CLE"}},
			}),
		},
		{
			Name:    "A33ReadError",
			Family:  Family,
			Handler: readError,
		},
		{
			Name:   "A33SetSampleRate",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.Float("sample_rate").Range(1e-6, 1e9),
			},
			Handler: setSampleRate,
		},
		{
			Name:   "A33UploadWaveform",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.String("name"),
				cnc.Samples("samples"),
				cnc.Float("sample_rate").Optional(),
			},
			Handler: uploadWaveform,
		},
		{
			Name:   "A33LoadArbitraryVolat",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.Int("arb_number").Range(1, MaxArbNumber).WithDefault(1),
				cnc.String("waveform_path"),
				cnc.Int("waveform_column_number").Range(0, 1e4).WithDefault(0),
				cnc.Float("sample_rate").Optional(),
			},
			Handler: loadArbitraryVolatile,
		},
	}
}

func initialize(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	var steps []string
	if p.Bool("reset") {
		steps = append(steps, "*RST")
	}
	steps = append(steps, "*CLS;*ESE 1;*SRE 32", "*WAI", "ROSC:SOUR:AUTO ON")

	for i, step := range steps {
		if err := inst.WriteClause(ctx, step); err != nil {
			return err
		}
		if i < len(steps)-1 {
			if err := cnc.Sleep(ctx, InitializeSettle); err != nil {
				return err
			}
		}
	}
	return cnc.CheckErrors(ctx, inst)
}

// readError reads one entry of the error queue. A non-empty queue fails
// the command with the instrument's message.
func readError(ctx context.Context, inst cnc.Instrument, _ scpi.Params) error {
	resp, err := query.String(cnc.Querier(ctx, inst), instrument.DefaultErrorQuery)
	if err != nil {
		return err
	}
	if code, msg := instrument.ParseError(resp); code != 0 {
		return fmt.Errorf("%w: %d %s", cnc.ErrPartialApply, code, msg)
	}
	return nil
}

func sampleRateClause(ch int, rate float64) string {
	return fmt.Sprintf("SOUR%d:FUNC:ARB:SRAT %s", ch, scpi.FormatPrecision(rate, SampleRateDigits))
}

func setSampleRate(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	if err := inst.WaitComplete(ctx); err != nil {
		return err
	}
	if err := inst.WriteClause(ctx, sampleRateClause(p.Int("channel"), p.Float("sample_rate"))); err != nil {
		return err
	}
	return cnc.CheckErrors(ctx, inst)
}

func uploadWaveform(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	return upload(ctx, inst, p.Int("channel"), p.String("name"), p.Samples("samples"), p)
}

func loadArbitraryVolatile(ctx context.Context, inst cnc.Instrument, p scpi.Params) error {
	samples, err := cnc.LoadWaveformCSV(p.String("waveform_path"), p.Int("waveform_column_number"))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("ARB%d", p.Int("arb_number"))
	return upload(ctx, inst, p.Int("channel"), name, samples, p)
}

// upload clears volatile memory and sends samples as name. The front
// panel shows a notice while the transfer runs and is cleared again even
// when the transfer fails.
func upload(ctx context.Context, inst cnc.Instrument, ch int, name string, samples []float32, p scpi.Params) (err error) {
	if name == "" || strings.ContainsAny(name, ", \t\r\n;") {
		return fmt.Errorf("%w: invalid waveform name %q", cnc.ErrMalformedParameters, name)
	}
	payload, err := scpi.Float32Payload(samples)
	if err != nil {
		return err
	}
	t, err := scpi.NewTransfer(fmt.Sprintf("SOUR%d:DATA:ARB %s,", ch, name), payload, "\n")
	if err != nil {
		return err
	}
	t.Setup = []string{
		"DISP:TEXT 'Uploading ARB'",
		"FORM:BORD SWAP",
		fmt.Sprintf("SOUR%d:DATA:VOL:CLE", ch),
	}
	t.Follow = []string{clearDisplay}
	if p.Has("sample_rate") {
		t.Follow = append(t.Follow, sampleRateClause(ch, p.Float("sample_rate")))
	}

	defer func() {
		if err != nil && !errors.Is(err, cnc.ErrPartialApply) {
			if cerr := inst.WriteClause(context.WithoutCancel(ctx), clearDisplay); cerr != nil {
				err = multierr.Append(err, cerr)
			}
		}
	}()
	return cnc.Upload(ctx, inst, t)
}
