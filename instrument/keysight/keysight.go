// Package keysight implements the command vocabulary of the Keysight
// (Agilent) 33600A series waveform generators.
package keysight

import (
	"github.com/sirupsen/logrus"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument"
	"github.com/TheAlpha16/awg-cnc/link"
	"github.com/TheAlpha16/awg-cnc/scpi"
)

// Family is the instrument family of the 33600A series.
const Family = "33600a"

// New returns a 33600A instrument on l.
func New(l link.Link, checkErrors bool, log logrus.FieldLogger) *instrument.SCPI {
	cfg := instrument.Config{
		Family:        Family,
		Terminator:    "\n",
		SyncDirective: "*WAI",
	}
	if checkErrors {
		cfg.ErrorQuery = instrument.DefaultErrorQuery
	}
	return instrument.New(l, cfg, log)
}

// Register adds every 33600A command to r.
func Register(r *cnc.Registry) error {
	return r.RegisterCommands(Commands()...)
}

var (
	ModulationSource   = scpi.NewEnum("source", "INT", "EXT", "CH1", "CH2")
	ModulationWaveform = scpi.NewEnum("modulation_waveform", "SIN", "SQU", "TRI", "RAMP", "NRAM", "NOIS", "PRBS", "ARB")
	TriggerSource      = scpi.NewEnum("trigger_source", "IMM", "TIM", "EXT", "BUS")
	TriggerSlope       = scpi.NewEnum("trigger_slope", "POS", "NEG")
	Waveform           = scpi.NewEnum("waveform", "SIN", "SQU", "PULS", "RAMP", "NOIS", "DC", "PRBS", "TRI")
	Polarity           = scpi.NewEnum("polarity", "NORM", "INV")
	OutputMode         = scpi.NewEnum("output_mode", "NORM", "GATED")
	SweepSpacing       = scpi.NewEnum("sweep_spacing", "LIN", "LOG")
	ArbFilter          = scpi.NewEnum("filter_key", "OFF", "STEP", "NORM")
	ArbRateKind        = scpi.NewEnum("f_sr_p", "FREQ", "SRAT", "PER")
)

// Waveform indices with their own fields in ConfigureWaveform.
const (
	waveformNoise = 4
	waveformDC    = 5
	waveformPRBS  = 6
)

// PRBSLengths are the supported PN sequence lengths.
var PRBSLengths = []int{7, 9, 11, 15, 20, 23}

// MaxArbNumber bounds arbitrary waveform numbers. Positive numbers name
// volatile waveforms, the others built-in waveform files.
const MaxArbNumber = 1e6

// SampleRateDigits is the precision of sample rate arguments.
const SampleRateDigits = 15

// SweepDigits is the precision of sweep, hold and return times.
const SweepDigits = 7

const source = "SOUR{channel}:"

// Commands returns the 33600A command descriptors.
func Commands() []cnc.Descriptor {
	descs := configurations()
	descs = append(descs, actions()...)
	return descs
}
