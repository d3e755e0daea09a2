package cnc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Registry maps command names to descriptors and device names to
// devices. It is populated at startup and read while serving.
type Registry struct {
	commands map[CommandName]*Descriptor
	devices  map[string]*Device
	log      logrus.FieldLogger
	mu       sync.RWMutex
}

// NewRegistry returns an empty registry. A nil logger uses the logrus
// standard logger.
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		commands: make(map[CommandName]*Descriptor),
		devices:  make(map[string]*Device),
		log:      log,
	}
}

// RegisterCommand adds a command descriptor.
func (r *Registry) RegisterCommand(desc Descriptor) error {
	if desc.Name == "" || desc.Handler == nil {
		return fmt.Errorf("%w: descriptor needs a name and a handler", ErrInvalidCommand)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, desc.Name)
	}
	d := desc
	d.Params = append([]ParamSpec(nil), desc.Params...)
	r.commands[desc.Name] = &d
	return nil
}

// RegisterCommands adds several descriptors, stopping at the first error.
func (r *Registry) RegisterCommands(descs ...Descriptor) error {
	for _, d := range descs {
		if err := r.RegisterCommand(d); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDevice adds an instrument under name. The registry takes
// ownership of the instrument and closes it in Close.
func (r *Registry) RegisterDevice(name string, inst Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, name)
	}
	r.devices[name] = &Device{name: name, inst: inst}
	r.log.WithFields(logrus.Fields{
		"device": name,
		"family": inst.Family(),
	}).Infof("registered %s as a %s instrument", name, inst.Family())
	return nil
}

// ResolveCommand looks up a command descriptor.
func (r *Registry) ResolveCommand(name CommandName) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return d, nil
}

// ResolveDevice looks up a device.
func (r *Registry) ResolveDevice(name string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return d, nil
}

// Commands returns the registered command names in order.
func (r *Registry) Commands() []CommandName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]CommandName, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Devices returns the registered devices ordered by name.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devs := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].name < devs[j].name })
	return devs
}

// Close closes every registered instrument.
func (r *Registry) Close() error {
	var err error
	for _, d := range r.Devices() {
		d.mu.Lock()
		if cerr := d.inst.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", d.name, cerr))
		}
		d.mu.Unlock()
	}
	return err
}
