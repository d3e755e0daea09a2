// Package siglent implements the command vocabulary of the Siglent
// SDG6000X signal generators.
package siglent

import (
	"github.com/sirupsen/logrus"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument"
	"github.com/TheAlpha16/awg-cnc/link"
)

// Family is the instrument family of the SDG6000X series.
const Family = "sdg6000x"

// New returns an SDG6000X instrument on l. With checkErrors set, every
// command is followed by an error queue check.
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

// Register adds every SDG6000X command to r.
func Register(r *cnc.Registry) error {
	return r.RegisterCommands(Commands()...)
}

// Commands returns the SDG6000X command descriptors.
func Commands() []cnc.Descriptor {
	descs := setters()
	descs = append(descs, configurations()...)
	descs = append(descs,
		cnc.Descriptor{
			Name:    "SDG60RefClock",
			Family:  Family,
			Params:  []cnc.ParamSpec{cnc.Bool("ref_source"), cnc.Bool("ref_out")},
			Handler: refClock,
		},
		cnc.Descriptor{
			Name:   "UploadWaveform",
			Family: Family,
			Params: []cnc.ParamSpec{
				cnc.Channel().WithDefault(1),
				cnc.String("name"),
				cnc.Samples("samples"),
				cnc.Float("sample_rate").Optional(),
			},
			Handler: uploadWaveform,
		},
	)
	return descs
}
