package link

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Open connects to an instrument address of the form tcp://host:port or
// serial:///dev/ttyUSB0?baud=115200.
func Open(ctx context.Context, address string, opts Options) (Link, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("address %q has no host", address)
		}
		return DialTCP(ctx, u.Host, opts)

	case "serial":
		name := u.Path
		if name == "" {
			name = u.Opaque
		}
		if name == "" {
			return nil, fmt.Errorf("address %q has no port name", address)
		}
		baud := DefaultBaudRate
		if b := u.Query().Get("baud"); b != "" {
			baud, err = strconv.Atoi(b)
			if err != nil {
				return nil, fmt.Errorf("address %q: invalid baud rate %q", address, b)
			}
		}
		return OpenSerial(name, baud, opts)
	}
	return nil, fmt.Errorf("address %q: unsupported scheme %q", address, u.Scheme)
}
