package cnc

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRegistryResolve(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRegistry(log)

	if err := r.RegisterCommands(frequencyCommand("test"), Descriptor{Name: "Other", Handler: Write("*TRG")}); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	d, err := r.ResolveCommand("SetFrequency")
	if err != nil || d.Name != "SetFrequency" || d.Family != "test" {
		t.Fatalf("ResolveCommand = %+v, %v", d, err)
	}
	if _, err := r.ResolveCommand("Missing"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Expected ErrUnknownCommand, got: %v", err)
	}
	if _, err := r.ResolveDevice("Missing"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Expected ErrUnknownDevice, got: %v", err)
	}

	got := r.Commands()
	if len(got) != 2 || got[0] != "Other" || got[1] != "SetFrequency" {
		t.Fatalf("Commands() = %v", got)
	}
}

func TestRegistryRejectsIncompleteDescriptor(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterCommand(Descriptor{Name: "NoHandler"}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("Expected ErrInvalidCommand, got: %v", err)
	}
}

func TestRegistryDescriptorIsCopied(t *testing.T) {
	r := NewRegistry(nil)
	desc := frequencyCommand("test")
	r.RegisterCommand(desc)
	desc.Params[0] = Int("changed")

	d, _ := r.ResolveCommand("SetFrequency")
	if d.Params[0].Name != "freq" {
		t.Fatalf("registered schema changed to %s", d.Params[0].Name)
	}
}

func TestRegistryLogsDevices(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewRegistry(log)

	if err := r.RegisterDevice("Gen1", newMockInstrument("sdg6000x")); err != nil {
		t.Fatal(err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Expected a log entry")
	}
	if entry.Level != logrus.InfoLevel {
		t.Errorf("level = %s", entry.Level)
	}
	if entry.Message != "registered Gen1 as a sdg6000x instrument" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Data["device"] != "Gen1" || entry.Data["family"] != "sdg6000x" {
		t.Errorf("fields = %v", entry.Data)
	}

	if err := r.RegisterDevice("Gen1", newMockInstrument("sdg6000x")); !errors.Is(err, ErrDuplicateDevice) {
		t.Fatalf("Expected ErrDuplicateDevice, got: %v", err)
	}
	if n := len(hook.AllEntries()); n != 1 {
		t.Fatalf("Expected the duplicate not to be logged, got %d entries", n)
	}
}

type failingCloser struct {
	*mockInstrument
}

func (f failingCloser) Close() error { return errors.New("stuck") }

func TestRegistryCloseCombinesErrors(t *testing.T) {
	r := NewRegistry(nil)
	ok := newMockInstrument("test")
	r.RegisterDevice("A", failingCloser{newMockInstrument("test")})
	r.RegisterDevice("B", ok)
	r.RegisterDevice("C", failingCloser{newMockInstrument("test")})

	err := r.Close()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if got := err.Error(); got != "close A: stuck; close C: stuck" {
		t.Errorf("error = %q", got)
	}
	if !ok.closed {
		t.Error("Expected B to be closed despite the other failures")
	}
}
