package siglent

import (
	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

const (
	basicWave = "C{channel}:BSWV"
	output    = "C{channel}:OUTP"
)

// SampleRateDigits is the precision of sample rate arguments.
const SampleRateDigits = 15

// setter declares a command writing one BSWV or OUTP field.
func setter(name, header, key string, param cnc.ParamSpec, value scpi.Value) cnc.Descriptor {
	return cnc.Descriptor{
		Name:   cnc.CommandName(name),
		Family: Family,
		Params: []cnc.ParamSpec{param, cnc.Channel()},
		Handler: cnc.Send(scpi.Template{
			Header: header,
			Fields: []scpi.Field{{Key: key, Value: value}},
		}),
	}
}

func setters() []cnc.Descriptor {
	return []cnc.Descriptor{
		setter("SetFrequency", basicWave, "FRQ", cnc.Float("freq").Range(0, 1e9), scpi.Plain("freq")),
		setter("SetAmplitude", basicWave, "AMP", cnc.Float("amp"), scpi.Plain("amp")),
		setter("SetOffset", basicWave, "OFST", cnc.Float("offset"), scpi.Plain("offset")),
		setter("SetDutyCycle", basicWave, "DUTY", cnc.Float("duty").Range(0, 100), scpi.Plain("duty")),
		setter("SetPhase", basicWave, "PHSE", cnc.Float("phase").Range(-360, 360), scpi.Plain("phase")),
		setter("SetRampSymmetry", basicWave, "SYM", cnc.Float("sym").Range(0, 100), scpi.Plain("sym")),
		setter("SetPulseWidth", basicWave, "WIDTH", cnc.Float("width").Range(0, 1e6), scpi.Plain("width")),
		setter("SetLength", basicWave, "LENGTH", cnc.Int("length").Range(3, 32), scpi.Integer("length")),
		setter("SetEdgeTime", basicWave, "EDGE", cnc.Float("edge_time").Range(0, 1), scpi.Fixed("edge_time", 15)),
		setter("SetDifferentialMode", basicWave, "DIFFSTATE", cnc.Bool("differential_mode"), scpi.Switch("differential_mode", "OFF", "ON")),
		setter("SetSampleRate", basicWave, "SRATE", cnc.Float("sample_rate").Range(0, 1e10), scpi.Precision("sample_rate", SampleRateDigits)),

		// Loads from 0 to 1e5 ohm are set as given, 1e6 and above select HiZ.
		setter("SetLoad", output, "LOAD", cnc.Float("load").Range(0, 1e9), scpi.Plain("load")),
		{
			Name:   "EnableOutput",
			Family: Family,
			Params: []cnc.ParamSpec{cnc.Bool("enabled"), cnc.Channel()},
			Handler: cnc.Send(scpi.Template{
				Header: output,
				Fields: []scpi.Field{
					{Key: "ON", When: scpi.True("enabled")},
					{Key: "OFF", When: scpi.False("enabled")},
				},
			}),
		},
		{
			Name:   "SetReference",
			Family: Family,
			Params: []cnc.ParamSpec{cnc.Int("reference").Range(0, 1)},
			Handler: cnc.Send(scpi.Template{
				Header: "ROSC",
				Fields: []scpi.Field{
					{Key: "INT", When: scpi.Is("reference", 1)},
					{Key: "EXT", When: scpi.IsNot("reference", 1)},
				},
			}),
		},
	}
}
