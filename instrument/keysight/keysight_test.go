package keysight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument"
	"github.com/TheAlpha16/awg-cnc/link/linktest"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

func descriptor(t *testing.T, name string) cnc.Descriptor {
	t.Helper()
	for _, d := range Commands() {
		if string(d.Name) == name {
			return d
		}
	}
	t.Fatalf("no command %s", name)
	return cnc.Descriptor{}
}

func run(t *testing.T, name string, raw map[string]any, responses ...string) ([]string, error) {
	t.Helper()
	d := descriptor(t, name)
	params, err := d.Validate(raw)
	if err != nil {
		return nil, err
	}
	log, _ := test.NewNullLogger()
	rec := linktest.NewRecorder(responses...)
	err = d.Handler(context.Background(), New(rec, false, log), params)
	return rec.Lines(), err
}

func expectMessage(t *testing.T, name string, raw map[string]any, want string) {
	t.Helper()
	lines, err := run(t, name, raw)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if len(lines) != 1 || lines[0] != want+"\n" {
		t.Errorf("%s writes = %q, want %q", name, lines, want)
	}
}

func TestConfigureAM(t *testing.T) {
	raw := map[string]any{
		"channel": 1, "am_source": "INT", "modulation_frequency": 1000,
		"enable_carrier_supression": false, "enable_amplitude_modulation": true, "modulation_depth": 50,
	}
	expectMessage(t, "A33ConfigureAM", raw,
		"SOUR1:AM:STAT ON;:SOUR1:AM:SOUR INT;:SOUR1:AM:INT:FUNC SIN;:SOUR1:AM:INT:FREQ 1000.00000000;:SOUR1:AM:DEPT 50.0000000000;:SOUR1:AM:DSSC OFF")

	raw["am_source"] = 1
	delete(raw, "modulation_frequency")
	expectMessage(t, "A33ConfigureAM", raw,
		"SOUR1:AM:STAT ON;:SOUR1:AM:SOUR EXT;:SOUR1:AM:DEPT 50.0000000000;:SOUR1:AM:DSSC OFF")

	raw["modulation_depth"] = 150
	if _, err := run(t, "A33ConfigureAM", raw); !errors.Is(err, cnc.ErrMalformedParameters) {
		t.Errorf("depth 150 error = %v", err)
	}
}

func TestConfigureFM(t *testing.T) {
	expectMessage(t, "A33ConfigureFM", map[string]any{"channel": 2, "enable_frequency_modulation": false},
		"SOUR2:FM:STAT OFF")

	expectMessage(t, "A33ConfigureFM", map[string]any{
		"channel": 1, "enable_frequency_modulation": true, "modulation_waveform": "TRI",
		"modulation_frequency": 10, "modulation_deviation": 500,
	}, "SOUR1:FM:STAT ON;:SOUR1:FM:SOUR INT;:SOUR1:FM:INT:FUNC TRI;:SOUR1:FM:INT:FREQ 10.0000000000;:SOUR1:FM:DEV 500.000000000")
}

func TestConfigureARB(t *testing.T) {
	raw := func() map[string]any {
		return map[string]any{
			"channel": 1, "arb_number": 2, "amplitude": 1, "f_sr_p": "SRAT", "filter_key": "NORM",
			"dc_offset": 0, "advance_mode": false, "freq_sample_rate_period": 1e6,
		}
	}
	expectMessage(t, "A33ConfigureARB", raw(),
		"SOUR1:FUNC:ARB ARB2;:SOUR1:FUNC ARB;:SOUR1:FUNC:ARB:FILT NORM;:SOUR1:FUNC:ARB:ADV SRAT;"+
			":SOUR1:VOLT 1.00000000000;:SOUR1:VOLT:OFFS 0.00000000000;:SOUR1:FUNC:ARB:SRAT 1000000.00000")

	r := raw()
	r["f_sr_p"] = 2
	r["phase"] = 90
	r["arb_name"] = "MYWAVE"
	lines, err := run(t, "A33ConfigureARB", r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(lines[0], "SOUR1:FUNC:ARB MYWAVE;") || !strings.HasSuffix(lines[0], ":SOUR1:FUNC:ARB:PER 1000000.00000;:SOUR1:PHAS:ARB 90.0000000000\n") {
		t.Errorf("named arb = %q", lines[0])
	}

	r = raw()
	r["arb_number"] = -3
	lines, err = run(t, "A33ConfigureARB", r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(lines[0], `SOUR1:FUNC:ARB "INT:\332XX_ARBS\ARBF3.ARB";`) {
		t.Errorf("built-in arb = %q", lines[0])
	}

	r = raw()
	r["f_sr_p"] = 3
	if _, err := run(t, "A33ConfigureARB", r); !errors.Is(err, scpi.ErrInvalidEnumIndex) {
		t.Errorf("f_sr_p 3 error = %v, want ErrInvalidEnumIndex", err)
	}
}

func TestConfigureWaveform(t *testing.T) {
	base := func(waveform any) map[string]any {
		return map[string]any{"channel": 1, "waveform": waveform, "amplitude": 1, "dc_offset": 0.5, "frequency_bw_bitrate": 1e6}
	}
	tests := []struct {
		name     string
		waveform any
		want     string
	}{
		{"sine", "SIN", "SOUR1:FUNC SIN;:SOUR1:VOLT 1.00000000000;:SOUR1:VOLT:OFFS 0.500000000000;:SOUR1:FREQ 1000000.00000;:SOUR1:PHAS 0.00000000000"},
		{"noise", "NOIS", "SOUR1:FUNC NOIS;:SOUR1:VOLT 1.00000000000;:SOUR1:VOLT:OFFS 0.500000000000;:SOUR1:FUNC:NOIS:BAND 1000000.00000"},
		{"dc", 5, "SOUR1:FUNC DC;:SOUR1:VOLT:OFFS 0.500000000000"},
		{"prbs", "PRBS", "SOUR1:FUNC PRBS;:SOUR1:VOLT 1.00000000000;:SOUR1:VOLT:OFFS 0.500000000000;:SOUR1:FUNC:PRBS:BRAT 1000000.00000;:SOUR1:PHAS 0.00000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectMessage(t, "A33ConfigureWFM", base(tt.waveform), tt.want)
		})
	}
}

func TestConfigureSweep(t *testing.T) {
	expectMessage(t, "A33ConfigureFSweep", map[string]any{
		"channel": 1, "enable_frequency_sweep": true, "sweep_spacing": "LOG", "sweep_time": 1,
		"hold_time": 0.5, "return_time": 0.25, "start_frequency": 100, "stop_frequency": 1000,
	}, "SOUR1:SWE:STAT ON;:SOUR1:SWE:SPAC LOG;:SOUR1:SWE:TIME 1.000000;:SOUR1:FREQ:STAR 100.000000000;"+
		":SOUR1:FREQ:STOP 1000.00000000;:SOUR1:SWE:HTIM 0.5000000;:SOUR1:SWE:RTIM 0.2500000")

	expectMessage(t, "A33ConfigureFSweep", map[string]any{"channel": 2, "enable_frequency_sweep": false},
		"SOUR2:SWE:STAT OFF")
}

func TestConfigureBurst(t *testing.T) {
	expectMessage(t, "A33ConfigureBurst", map[string]any{
		"channel": 1, "enable_burst": true, "burst_phase": 0, "burst_count": 5,
	}, "SOUR1:BURS:MODE TRIG;:SOUR1:BURS:PHAS 0.00000000000;:SOUR1:BURS:NCYC 5;:SOUR1:BURS:STAT ON")

	expectMessage(t, "A33ConfigureBurst", map[string]any{
		"channel": 1, "enable_burst": true, "burst_mode": true, "gate_polarity": true, "internal_period": 0.01,
	}, "SOUR1:BURS:MODE GAT;:SOUR1:BURS:GATE:POL INV;:SOUR1:BURS:INT:PER 0.0100000000000;:SOUR1:BURS:STAT ON")
}

func TestConfigureTriggerOutputAndPRBS(t *testing.T) {
	expectMessage(t, "A33ConfigureTrigger", map[string]any{
		"channel": 2, "trigger_source": "BUS", "trigger_slope": 1, "delay": 0, "int_period": 0.001, "trigger_level": 1,
	}, "TRIG2:SOUR BUS;:TRIG2:SLOP NEG;:TRIG2:DEL 0.00000000000;:TRIG2:TIM 0.00100000000000;:TRIG2:LEV 1.00000000000")

	expectMessage(t, "A33OutputOnOff", map[string]any{"channel": 1, "enable_output": true, "impedance": 50},
		"OUTP1:LOAD 50.0000000000;:OUTP1:POL NORM;:OUTP1:MODE NORM;:OUTP1 ON")

	expectMessage(t, "A33ConfigurePRBS", map[string]any{"channel": 1, "sequence_type": 7, "edge": 1e-8},
		"SOUR1:FUNC:PRBS:DATA PN7;:SOUR1:FUNC:PRBS:TRAN 1.00000000000e-08")

	expectMessage(t, "A33ConfigurePulse", map[string]any{
		"channel": 1, "pulse_period": 0.001, "pulse_width": 0.0005, "leading_edge": 1e-8, "trailing_edge": 1e-8,
	}, "SOUR1:FUNC:PULS:PER 0.00100000000000;:SOUR1:FUNC:PULS:WIDT 0.000500000000000;"+
		":SOUR1:FUNC:PULS:TRAN:LEAD 1.00000000000e-08;:SOUR1:FUNC:PULS:TRAN:TRA 1.00000000000e-08")
}

func TestInitialize(t *testing.T) {
	InitializeSettle = 0

	lines, err := run(t, "A33Initialize", map[string]any{"reset": true})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"*RST\n", "*CLS;*ESE 1;*SRE 32\n", "*WAI\n", "ROSC:SOUR:AUTO ON\n"}
	if strings.Join(lines, "") != strings.Join(want, "") {
		t.Errorf("writes = %q, want %q", lines, want)
	}

	lines, _ = run(t, "A33Initialize", nil)
	if len(lines) != 3 {
		t.Errorf("Expected no reset by default, got: %q", lines)
	}
}

func TestActions(t *testing.T) {
	expectMessage(t, "A33PhaseSync", nil, "SOUR1:PHAS:SYNC")
	expectMessage(t, "A33ArbPhaseSync", nil, "FUNC:ARB:SYNC")
	expectMessage(t, "A33Trg", nil, "*TRG")
	expectMessage(t, "A33ClearArbitrary", map[string]any{"channel": 2}, "SOUR2:DATA:VOL:CLE")

	lines, err := run(t, "A33SetSampleRate", map[string]any{"sample_rate": 1e6})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "*WAI\n" || lines[1] != "SOUR1:FUNC:ARB:SRAT 1000000.00000000\n" {
		t.Errorf("sample rate writes = %q", lines)
	}
}

func TestReadError(t *testing.T) {
	if _, err := run(t, "A33ReadError", nil, `+0,"No error"`); err != nil {
		t.Errorf("empty queue = %v", err)
	}
	_, err := run(t, "A33ReadError", nil, `-222,"Data out of range"`)
	if !errors.Is(err, cnc.ErrPartialApply) || !strings.Contains(err.Error(), "Data out of range") {
		t.Errorf("queued error = %v", err)
	}
}

func TestUploadWaveform(t *testing.T) {
	lines, err := run(t, "A33UploadWaveform", map[string]any{"name": "w", "samples": []float64{0.5}, "sample_rate": 1e3})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"DISP:TEXT 'Uploading ARB'\n",
		"FORM:BORD SWAP\n",
		"SOUR1:DATA:VOL:CLE\n",
		"SOUR1:DATA:ARB w,#14\x00\x00\x00\x3f\n",
		"*WAI\n",
		"DISP:TEXT ''\n",
		"SOUR1:FUNC:ARB:SRAT 1000.00000000000\n",
	}
	if len(lines) != len(want) {
		t.Fatalf("writes = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLoadArbitraryVolatile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.csv")
	if err := os.WriteFile(path, []byte("t,v\n0,0.1\n1,-0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := run(t, "A33LoadArbitraryVolat", map[string]any{"arb_number": 3, "waveform_path": path, "waveform_column_number": 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 6 || !strings.HasPrefix(lines[3], "SOUR1:DATA:ARB ARB3,#18") || len(lines[3]) != len("SOUR1:DATA:ARB ARB3,#18")+8+1 {
		t.Errorf("writes = %q", lines)
	}

	if _, err := run(t, "A33LoadArbitraryVolat", map[string]any{"waveform_path": filepath.Join(t.TempDir(), "none.csv")}); !errors.Is(err, cnc.ErrMalformedParameters) {
		t.Errorf("missing file error = %v", err)
	}
}

func runChecked(t *testing.T, name string, raw map[string]any, responses ...string) ([]string, error) {
	t.Helper()
	d := descriptor(t, name)
	params, err := d.Validate(raw)
	if err != nil {
		t.Fatal(err)
	}
	log, _ := test.NewNullLogger()
	rec := linktest.NewRecorder(responses...)
	err = d.Handler(context.Background(), New(rec, true, log), params)
	return rec.Lines(), err
}

func TestUploadWaveformChecksErrors(t *testing.T) {
	lines, err := runChecked(t, "A33UploadWaveform", map[string]any{"name": "w", "samples": []float64{0.5}},
		`-222,"Data out of range"`, `+0,"No error"`)
	if !errors.Is(err, cnc.ErrPartialApply) {
		t.Fatalf("error = %v, want ErrPartialApply", err)
	}
	want := []string{"*WAI\n", "DISP:TEXT ''\n", "SYST:ERR?\n", "SYST:ERR?\n"}
	if len(lines) != 8 || strings.Join(lines[4:], "") != strings.Join(want, "") {
		t.Errorf("writes = %q", lines)
	}
}

func TestMultiStepActionsCheckErrors(t *testing.T) {
	InitializeSettle = 0

	lines, err := runChecked(t, "A33Initialize", nil, `+0,"No error"`)
	if err != nil {
		t.Fatal(err)
	}
	if lines[len(lines)-1] != "SYST:ERR?\n" {
		t.Errorf("initialize writes = %q", lines)
	}

	lines, err = runChecked(t, "A33SetSampleRate", map[string]any{"sample_rate": 1e6}, `-222,"Data out of range"`, `+0,"No error"`)
	if !errors.Is(err, cnc.ErrPartialApply) {
		t.Errorf("sample rate error = %v, want ErrPartialApply", err)
	}
	if len(lines) != 4 || lines[2] != "SYST:ERR?\n" {
		t.Errorf("sample rate writes = %q", lines)
	}
}

type failingBlock struct {
	*instrument.SCPI
	err error
}

func (f failingBlock) WriteBlock(context.Context, []byte) error { return f.err }

func TestUploadFailureClearsDisplay(t *testing.T) {
	log, _ := test.NewNullLogger()
	rec := linktest.NewRecorder()
	blockErr := errors.New("link down")
	inst := failingBlock{SCPI: New(rec, false, log), err: blockErr}

	d := descriptor(t, "A33UploadWaveform")
	params, err := d.Validate(map[string]any{"name": "w", "samples": []float64{0.5, -0.5}})
	if err != nil {
		t.Fatal(err)
	}
	err = d.Handler(context.Background(), inst, params)
	if !errors.Is(err, blockErr) {
		t.Fatalf("error = %v, want %v", err, blockErr)
	}
	lines := rec.Lines()
	if len(lines) != 4 || lines[0] != "DISP:TEXT 'Uploading ARB'\n" || lines[3] != "DISP:TEXT ''\n" {
		t.Errorf("writes = %q", lines)
	}
}

func TestParameterSets(t *testing.T) {
	for _, n := range []int{9, 23} {
		if _, err := run(t, "A33ConfigurePRBS", map[string]any{"channel": 1, "sequence_type": n, "edge": 1e-8}); err != nil {
			t.Errorf("sequence_type %d: %v", n, err)
		}
	}
	for _, n := range []int{8, 10, 22} {
		if _, err := run(t, "A33ConfigurePRBS", map[string]any{"channel": 1, "sequence_type": n, "edge": 1e-8}); !errors.Is(err, cnc.ErrMalformedParameters) {
			t.Errorf("sequence_type %d error = %v", n, err)
		}
	}
	arb := map[string]any{
		"channel": 1, "arb_number": 2e6, "amplitude": 1, "f_sr_p": "SRAT", "filter_key": "NORM",
		"dc_offset": 0, "advance_mode": false, "freq_sample_rate_period": 1e6,
	}
	if _, err := run(t, "A33ConfigureARB", arb); !errors.Is(err, cnc.ErrMalformedParameters) {
		t.Errorf("arb_number 2e6 error = %v", err)
	}
	if _, err := run(t, "A33LoadArbitraryVolat", map[string]any{"arb_number": 0, "waveform_path": "x.csv"}); !errors.Is(err, cnc.ErrMalformedParameters) {
		t.Errorf("arb_number 0 error = %v", err)
	}
}
