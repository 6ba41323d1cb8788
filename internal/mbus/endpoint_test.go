package mbus

import (
	"errors"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		wantType EndpointType
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"usb serial", "/dev/ttyUSB0", EndpointSerial, "", 0, false},
		{"uart serial", "/dev/ttyAMA0", EndpointSerial, "", 0, false},
		{"pty", "/dev/pts/3", EndpointSerial, "", 0, false},
		{"tcp", "192.168.1.50:9999", EndpointTCP, "192.168.1.50", 9999, false},
		{"tcp low port", "10.0.0.1:1", EndpointTCP, "10.0.0.1", 1, false},
		{"empty", "", EndpointSerial, "", 0, true},
		{"hostname tcp", "meter.local:9999", EndpointSerial, "", 0, true},
		{"bad octet", "192.168.1.300:9999", EndpointSerial, "", 0, true},
		{"bad port", "192.168.1.50:70000", EndpointSerial, "", 0, true},
		{"port zero", "192.168.1.50:0", EndpointSerial, "", 0, true},
		{"missing port", "192.168.1.50:", EndpointSerial, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.device)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Fatalf("ParseEndpoint(%q) error = %v, want ErrInvalidEndpoint", tt.device, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q) error = %v", tt.device, err)
			}
			if ep.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", ep.Type, tt.wantType)
			}
			if ep.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", ep.Host, tt.wantHost)
			}
			if ep.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", ep.Port, tt.wantPort)
			}
		})
	}
}
