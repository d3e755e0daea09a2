package keysight

import (
	"fmt"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// AM configures amplitude modulation. The internal modulation function
// and frequency are only sent for the internal source.
var AM = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "AM:STAT", Value: scpi.Switch("enable_amplitude_modulation", "OFF", "ON")},
		{Key: "AM:SOUR", Value: scpi.Choice("am_source", ModulationSource)},
		{Key: "AM:INT:FUNC", Value: scpi.Choice("modulation_waveform", ModulationWaveform), When: scpi.Is("am_source", 0)},
		{Key: "AM:INT:FREQ", Value: scpi.Number("modulation_frequency"), When: scpi.Is("am_source", 0)},
		{Key: "AM:DEPT", Value: scpi.Number("modulation_depth")},
		{Key: "AM:DSSC", Value: scpi.Switch("enable_carrier_supression", "OFF", "ON")},
	},
}

// FM configures frequency modulation. Disabling it sends only the state.
var FM = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "FM:STAT", Value: scpi.Switch("enable_frequency_modulation", "OFF", "ON")},
		{Key: "FM:SOUR", Value: scpi.Choice("fm_source", ModulationSource), When: scpi.True("enable_frequency_modulation")},
		{Key: "FM:INT:FUNC", Value: scpi.Choice("modulation_waveform", ModulationWaveform),
			When: scpi.All(scpi.True("enable_frequency_modulation"), scpi.Is("fm_source", 0))},
		{Key: "FM:INT:FREQ", Value: scpi.Number("modulation_frequency"),
			When: scpi.All(scpi.True("enable_frequency_modulation"), scpi.Is("fm_source", 0))},
		{Key: "FM:DEV", Value: scpi.Number("modulation_deviation"), When: scpi.True("enable_frequency_modulation")},
	},
}

// ARB selects and configures an arbitrary waveform.
var ARB = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "FUNC:ARB", Value: arbSelection},
		{Key: "FUNC", Value: scpi.Literal("ARB")},
		{Key: "FUNC:ARB:FILT", Value: scpi.Choice("filter_key", ArbFilter)},
		{Key: "FUNC:ARB:ADV", Value: scpi.Switch("advance_mode", "SRAT", "TRIG")},
		{Key: "VOLT", Value: scpi.Number("amplitude")},
		{Key: "VOLT:OFFS", Value: scpi.Number("dc_offset")},
		{Key: "FUNC:ARB:", Value: scpi.Number("freq_sample_rate_period"), Select: "f_sr_p", Keys: ArbRateKind},
		{Key: "PHAS:ARB", Value: scpi.Number("phase"), When: scpi.Within("phase", -360, 360)},
	},
}

// arbSelection names the waveform to play: arb_name when given, the
// volatile waveform ARB<n> for a positive arb_number, and the built-in
// file ARBF<n> otherwise.
func arbSelection(p scpi.Params) (string, error) {
	if p.Has("arb_name") {
		return p.String("arb_name"), nil
	}
	n := p.Int("arb_number")
	if n > 0 {
		return fmt.Sprintf("ARB%d", n), nil
	}
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf(`"INT:\332XX_ARBS\ARBF%d.ARB"`, n), nil
}

// Burst configures gated or triggered burst mode.
var Burst = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "BURS:MODE", Value: scpi.Literal("GAT"), When: scpi.All(scpi.True("enable_burst"), scpi.True("burst_mode"))},
		{Key: "BURS:GATE:POL", Value: scpi.Switch("gate_polarity", "NORM", "INV"), When: scpi.All(scpi.True("enable_burst"), scpi.True("burst_mode"))},
		{Key: "BURS:INT:PER", Value: scpi.Number("internal_period"), When: scpi.All(scpi.True("enable_burst"), scpi.True("burst_mode"))},
		{Key: "BURS:MODE", Value: scpi.Literal("TRIG"), When: scpi.All(scpi.True("enable_burst"), scpi.False("burst_mode"))},
		{Key: "BURS:PHAS", Value: scpi.Number("burst_phase"), When: scpi.All(scpi.True("enable_burst"), scpi.False("burst_mode"))},
		{Key: "BURS:NCYC", Value: scpi.Integer("burst_count"), When: scpi.All(scpi.True("enable_burst"), scpi.False("burst_mode"))},
		{Key: "BURS:STAT", Value: scpi.Switch("enable_burst", "OFF", "ON")},
	},
}

// Sweep configures a frequency sweep. Times use SweepDigits.
var Sweep = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "SWE:STAT", Value: scpi.Switch("enable_frequency_sweep", "OFF", "ON")},
		{Key: "SWE:SPAC", Value: scpi.Choice("sweep_spacing", SweepSpacing), When: scpi.True("enable_frequency_sweep")},
		{Key: "SWE:TIME", Value: scpi.Precision("sweep_time", SweepDigits), When: scpi.True("enable_frequency_sweep")},
		{Key: "FREQ:STAR", Value: scpi.Number("start_frequency"), When: scpi.True("enable_frequency_sweep")},
		{Key: "FREQ:STOP", Value: scpi.Number("stop_frequency"), When: scpi.True("enable_frequency_sweep")},
		{Key: "SWE:HTIM", Value: scpi.Precision("hold_time", SweepDigits), When: scpi.True("enable_frequency_sweep")},
		{Key: "SWE:RTIM", Value: scpi.Precision("return_time", SweepDigits), When: scpi.True("enable_frequency_sweep")},
	},
}

var Pulse = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "FUNC:PULS:PER", Value: scpi.Number("pulse_period")},
		{Key: "FUNC:PULS:WIDT", Value: scpi.Number("pulse_width")},
		{Key: "FUNC:PULS:TRAN:LEAD", Value: scpi.Number("leading_edge")},
		{Key: "FUNC:PULS:TRAN:TRA", Value: scpi.Number("trailing_edge")},
	},
}

var Trigger = scpi.Template{
	Header: "TRIG{channel}:",
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "SOUR", Value: scpi.Choice("trigger_source", TriggerSource)},
		{Key: "SLOP", Value: scpi.Choice("trigger_slope", TriggerSlope)},
		{Key: "DEL", Value: scpi.Number("delay")},
		{Key: "TIM", Value: scpi.Number("int_period")},
		{Key: "LEV", Value: scpi.Number("trigger_level")},
	},
}

// StandardWaveform selects a waveform and its level and rate fields. DC has
// no amplitude, noise takes a bandwidth and PRBS a bit rate instead of a
// frequency, and neither noise nor DC has a phase.
var StandardWaveform = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "FUNC", Value: scpi.Choice("waveform", Waveform)},
		{Key: "VOLT", Value: scpi.Number("amplitude"), When: scpi.IsNot("waveform", waveformDC)},
		{Key: "VOLT:OFFS", Value: scpi.Number("dc_offset")},
		{Key: "FUNC:NOIS:BAND", Value: scpi.Number("frequency_bw_bitrate"), When: scpi.Is("waveform", waveformNoise)},
		{Key: "FUNC:PRBS:BRAT", Value: scpi.Number("frequency_bw_bitrate"), When: scpi.Is("waveform", waveformPRBS)},
		{Key: "FREQ", Value: scpi.Number("frequency_bw_bitrate"),
			When: scpi.All(scpi.IsNot("waveform", waveformNoise), scpi.IsNot("waveform", waveformDC), scpi.IsNot("waveform", waveformPRBS))},
		{Key: "PHAS", Value: scpi.Number("phase"),
			When: scpi.All(scpi.IsNot("waveform", waveformNoise), scpi.IsNot("waveform", waveformDC))},
	},
}

var Output = scpi.Template{
	Header: "OUTP{channel}",
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: ":LOAD", Value: scpi.Number("impedance")},
		{Key: ":POL", Value: scpi.Choice("polarity", Polarity)},
		{Key: ":MODE", Value: scpi.Choice("output_mode", OutputMode)},
		{Value: scpi.Switch("enable_output", "OFF", "ON")},
	},
}

// PRBS selects the PN sequence and the edge time of the PRBS waveform.
var PRBS = scpi.Template{
	Header: source,
	Style:  scpi.Chained,
	Fields: []scpi.Field{
		{Key: "FUNC:PRBS:DATA", Value: func(p scpi.Params) (string, error) {
			v, err := scpi.Integer("sequence_type")(p)
			return "PN" + v, err
		}},
		{Key: "FUNC:PRBS:TRAN", Value: scpi.Number("edge")},
	},
}

func configurations() []cnc.Descriptor {
	return []cnc.Descriptor{
		{
			Name:   "A33ConfigureAM",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Choice("am_source", ModulationSource),
				cnc.Choice("modulation_waveform", ModulationWaveform).WithDefault(0),
				cnc.Float("modulation_frequency").Optional(),
				cnc.Bool("enable_carrier_supression"),
				cnc.Bool("enable_amplitude_modulation"),
				cnc.Float("modulation_depth").Range(0, 120),
			},
			Handler: cnc.Send(AM),
		},
		{
			Name:   "A33ConfigureFM",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Bool("enable_frequency_modulation"),
				cnc.Choice("fm_source", ModulationSource).WithDefault(0),
				cnc.Choice("modulation_waveform", ModulationWaveform).WithDefault(0),
				cnc.Float("modulation_deviation").Optional(),
				cnc.Float("modulation_frequency").Optional(),
			},
			Handler: cnc.Send(FM),
		},
		{
			Name:   "A33ConfigureARB",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Int("arb_number").Range(-MaxArbNumber, MaxArbNumber).WithDefault(1),
				cnc.String("arb_name").Optional(),
				cnc.Float("amplitude"),
				cnc.Choice("f_sr_p", ArbRateKind),
				cnc.Float("phase").Optional(),
				cnc.Choice("filter_key", ArbFilter),
				cnc.Float("dc_offset"),
				cnc.Bool("advance_mode"),
				cnc.Float("freq_sample_rate_period"),
			},
			Handler: cnc.Send(ARB),
		},
		{
			Name:   "A33ConfigureBurst",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Bool("burst_mode").WithDefault(false),
				cnc.Float("burst_phase").Optional(),
				cnc.Int("burst_count").Range(1, 1e8).Optional(),
				cnc.Bool("gate_polarity").WithDefault(false),
				cnc.Float("internal_period").Optional(),
				cnc.Bool("enable_burst"),
			},
			Handler: cnc.Send(Burst),
		},
		{
			Name:   "A33ConfigureFSweep",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Bool("enable_frequency_sweep"),
				cnc.Choice("sweep_spacing", SweepSpacing).WithDefault(0),
				cnc.Float("sweep_time").Optional(),
				cnc.Float("hold_time").Optional(),
				cnc.Float("return_time").Optional(),
				cnc.Float("start_frequency").Optional(),
				cnc.Float("stop_frequency").Optional(),
			},
			Handler: cnc.Send(Sweep),
		},
		{
			Name:   "A33ConfigurePulse",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Float("pulse_period"),
				cnc.Float("pulse_width"),
				cnc.Float("leading_edge"),
				cnc.Float("trailing_edge"),
			},
			Handler: cnc.Send(Pulse),
		},
		{
			Name:   "A33ConfigureTrigger",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Choice("trigger_source", TriggerSource),
				cnc.Choice("trigger_slope", TriggerSlope),
				cnc.Float("delay"),
				cnc.Float("int_period"),
				cnc.Float("trigger_level"),
			},
			Handler: cnc.Send(Trigger),
		},
		{
			Name:   "A33ConfigureWFM",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Choice("waveform", Waveform),
				cnc.Float("amplitude"),
				cnc.Float("dc_offset"),
				cnc.Float("frequency_bw_bitrate"),
				cnc.Float("phase").WithDefault(0.0),
			},
			Handler: cnc.Send(StandardWaveform),
		},
		{
			Name:   "A33OutputOnOff",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Bool("enable_output"),
				cnc.Choice("output_mode", OutputMode).WithDefault(0),
				cnc.Choice("polarity", Polarity).WithDefault(0),
				cnc.Float("impedance").Range(1, 1e4),
			},
			Handler: cnc.Send(Output),
		},
		{
			Name:   "A33ConfigurePRBS",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Int("sequence_type").OneOf(PRBSLengths...),
				cnc.Float("edge"),
			},
			Handler: cnc.Send(PRBS),
		},
	}
}
