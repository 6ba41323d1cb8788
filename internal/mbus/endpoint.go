package mbus

import (
	"fmt"
	"strconv"
	"strings"
)

// EndpointType distinguishes serial from TCP bus endpoints.
type EndpointType string

const (
	EndpointSerial EndpointType = "serial"
	EndpointTCP    EndpointType = "tcp"
)

// Endpoint is the normalised form of the mbus.device config value.
type Endpoint struct {
	Type   EndpointType
	Device string

	// Host and Port are set for TCP endpoints only.
	Host string
	Port int
}

// ParseEndpoint classifies a device string as serial or TCP.
//
// A TCP endpoint is strictly IPv4:port (e.g. "192.168.1.50:9999"). Anything
// containing a colon that does not match that form is rejected; everything
// else is treated as a serial device path.
func ParseEndpoint(device string) (Endpoint, error) {
	if device == "" {
		return Endpoint{}, fmt.Errorf("%w: empty device", ErrInvalidEndpoint)
	}

	if !strings.Contains(device, ":") {
		return Endpoint{Type: EndpointSerial, Device: device}, nil
	}

	host, portStr, _ := strings.Cut(device, ":")
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return Endpoint{}, fmt.Errorf("%w: only IPv4:port is supported for TCP endpoints, got %q",
			ErrInvalidEndpoint, device)
	}
	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || o == "" || n > 255 {
			return Endpoint{}, fmt.Errorf("%w: invalid IPv4 address in %q", ErrInvalidEndpoint, device)
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: invalid TCP port in %q", ErrInvalidEndpoint, device)
	}

	return Endpoint{Type: EndpointTCP, Device: device, Host: host, Port: port}, nil
}
