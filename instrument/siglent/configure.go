package siglent

import (
	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// WaveformType selects the basic waveform in SDG60ConfSTDWFM.
var WaveformType = scpi.NewEnum("waveform_type",
	"SINE", "SQUARE", "RAMP", "PULSE", "NOISE", "ARB", "DC", "PRBS")

// PRBS configures a PRBS output in one BSWV clause. Either the bit rate or
// the period is sent, depending on bit_rate_period.
var PRBS = scpi.Template{
	Header: basicWave,
	Fields: []scpi.Field{
		{Key: "WVTP", Value: scpi.Literal("PRBS")},
		{Key: "BITRATE", Value: scpi.Number("bit_rate"), When: scpi.True("bit_rate_period")},
		{Key: "PERI", Value: scpi.Number("period"), When: scpi.False("bit_rate_period")},
		{Key: "AMP", Value: scpi.Number("amp")},
		{Key: "OFST", Value: scpi.Number("offset")},
		{Key: "LENGTH", Value: scpi.Integer("length")},
		{Key: "DIFFSTATE", Value: scpi.Switch("differential_mode", "OFF", "ON")},
		{Key: "EDGE", Value: scpi.Number("edge_time")},
	},
}

// StandardWaveform configures a basic waveform. Only the given fields are
// sent.
var StandardWaveform = scpi.Template{
	Header: basicWave,
	Fields: []scpi.Field{
		{Key: "WVTP", Value: scpi.Choice("waveform_type", WaveformType)},
		{Key: "FRQ", Value: scpi.Number("freq"), When: scpi.All(scpi.True("is_freq_mode"), scpi.Present("freq"))},
		{Key: "PERI", Value: scpi.Number("period"), When: scpi.All(scpi.False("is_freq_mode"), scpi.Present("period"))},
		{Key: "AMP", Value: scpi.Number("amp"), When: scpi.Present("amp")},
		{Key: "OFST", Value: scpi.Number("offset"), When: scpi.Present("offset")},
		{Key: "PHSE", Value: scpi.Number("phase"), When: scpi.Present("phase")},
		{Key: "DUTY", Value: scpi.Number("duty_cycle"), When: scpi.Present("duty_cycle")},
		{Key: "SYM", Value: scpi.Number("ramp_symmetry"), When: scpi.Present("ramp_symmetry")},
		{Key: "WIDTH", Value: scpi.Number("pulse_width"), When: scpi.Present("pulse_width")},
		{Key: "EDGE", Value: scpi.Number("edge_time"), When: scpi.Present("edge_time")},
	},
}

// Pulse configures a pulse waveform. Period takes precedence over
// frequency, amplitude and offset over high and low level, and pulse
// width over duty cycle.
var Pulse = scpi.Template{
	Header: basicWave,
	Fields: []scpi.Field{
		{Key: "WVTP", Value: scpi.Literal("PULSE")},
		{Key: "PERI", Value: scpi.Number("period"), When: scpi.Present("period")},
		{Key: "FRQ", Value: scpi.Number("freq"), When: scpi.Absent("period")},
		{Key: "AMP", Value: scpi.Number("amp"), When: scpi.Present("amp")},
		{Key: "HLEV", Value: scpi.Number("high_level"), When: scpi.All(scpi.Absent("amp"), scpi.Present("high_level"))},
		{Key: "OFST", Value: scpi.Number("offset"), When: scpi.Present("offset")},
		{Key: "LLEV", Value: scpi.Number("low_level"), When: scpi.All(scpi.Absent("offset"), scpi.Present("low_level"))},
		{Key: "WIDTH", Value: scpi.Number("pulse_width"), When: scpi.Present("pulse_width")},
		{Key: "DUTY", Value: scpi.Number("duty_cycle"), When: scpi.All(scpi.Absent("pulse_width"), scpi.Present("duty_cycle"))},
		{Key: "RISE", Value: scpi.Number("rise_time"), When: scpi.Present("rise_time")},
		{Key: "FALL", Value: scpi.Number("fall_time"), When: scpi.Present("fall_time")},
		{Key: "DLY", Value: scpi.Number("delay"), When: scpi.Present("delay")},
	},
}

func configurations() []cnc.Descriptor {
	return []cnc.Descriptor{
		{
			Name:   "SDG60ConfPRBS",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel(),
				cnc.Bool("bit_rate_period"),
				cnc.Float("bit_rate").Optional(),
				cnc.Float("period").Optional(),
				cnc.Float("amp"),
				cnc.Float("offset"),
				cnc.Bool("differential_mode"),
				cnc.Int("length").Range(3, 32),
				cnc.Float("edge_time"),
			},
			Handler: cnc.Send(PRBS),
		},
		{
			Name:   "SDG60ConfSTDWFM",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.Choice("waveform_type", WaveformType).WithDefault(0),
				cnc.Bool("is_freq_mode").WithDefault(true),
				cnc.Float("freq").Optional(),
				cnc.Float("period").Optional(),
				cnc.Float("amp").Optional(),
				cnc.Float("offset").Optional(),
				cnc.Float("phase").Optional(),
				cnc.Float("duty_cycle").Optional(),
				cnc.Float("ramp_symmetry").Optional(),
				cnc.Float("pulse_width").Optional(),
				cnc.Float("edge_time").Optional(),
			},
			Handler: cnc.Send(StandardWaveform),
		},
		{
			Name:   "SDG60ConfPulse",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.Float("freq").Optional(),
				cnc.Float("period").Optional(),
				cnc.Float("amp").Optional(),
				cnc.Float("high_level").Optional(),
				cnc.Float("offset").Optional(),
				cnc.Float("low_level").Optional(),
				cnc.Float("pulse_width").Optional(),
				cnc.Float("duty_cycle").Optional(),
				cnc.Float("rise_time").Optional(),
				cnc.Float("fall_time").Optional(),
				cnc.Float("delay").Optional(),
			},
			Handler: cnc.Send(Pulse),
		},
	}
}
