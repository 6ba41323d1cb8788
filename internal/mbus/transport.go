package mbus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
)

// scanPattern extracts bus addresses from the libmbus scan output.
var scanPattern = regexp.MustCompile(`Found a M-Bus device at address (\d+)`)

// Transport reads from an M-Bus network.
//
// Implementations must be safe for sequential use; the bus is not reentrant
// and callers never issue concurrent Scan/Poll calls.
type Transport interface {
	// Scan enumerates responding primary addresses. A scan can take minutes
	// on a degraded TCP link; callers bound it via ctx.
	Scan(ctx context.Context) ([]int, error)

	// Poll requests data from one device and parses the response.
	Poll(ctx context.Context, address int) (*Reading, error)
}

// Logger is the logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// CLITransport implements Transport by shelling out to the libmbus tools.
//
// Serial endpoints use mbus-serial-scan / mbus-serial-request-data with an
// explicit baud rate; TCP endpoints use mbus-tcp-scan / mbus-tcp-request-data
// with host and port arguments.
type CLITransport struct {
	endpoint   Endpoint
	baudrate   int
	binaryPath string
	logger     Logger
}

// NewCLITransport builds a transport from the M-Bus configuration.
//
// The endpoint string is validated and the libmbus tools for it are
// resolved here, so a missing binary fails startup rather than the first
// poll cycle.
func NewCLITransport(cfg config.MBusConfig) (*CLITransport, error) {
	endpoint, err := ParseEndpoint(cfg.Device)
	if err != nil {
		return nil, err
	}

	t := &CLITransport{
		endpoint:   endpoint,
		baudrate:   cfg.Baudrate,
		binaryPath: cfg.BinaryPath,
		logger:     noopLogger{},
	}

	for _, name := range t.requiredBinaries() {
		if _, lookErr := exec.LookPath(t.binary(name)); lookErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, t.binary(name))
		}
	}

	return t, nil
}

// requiredBinaries lists the libmbus tools the endpoint type needs.
func (t *CLITransport) requiredBinaries() []string {
	if t.endpoint.Type == EndpointTCP {
		return []string{"mbus-tcp-scan", "mbus-tcp-request-data"}
	}
	return []string{"mbus-serial-scan", "mbus-serial-request-data"}
}

// SetLogger sets the logger for the transport.
func (t *CLITransport) SetLogger(logger Logger) {
	t.logger = logger
}

// Endpoint returns the parsed bus endpoint.
func (t *CLITransport) Endpoint() Endpoint {
	return t.endpoint
}

// Scan enumerates responding primary addresses by running the libmbus scan
// tool and parsing its "Found a M-Bus device at address N" lines.
func (t *CLITransport) Scan(ctx context.Context) ([]int, error) {
	var cmd *exec.Cmd
	switch t.endpoint.Type {
	case EndpointTCP:
		cmd = exec.CommandContext(ctx, t.binary("mbus-tcp-scan"),
			t.endpoint.Host, strconv.Itoa(t.endpoint.Port))
	default:
		cmd = exec.CommandContext(ctx, t.binary("mbus-serial-scan"),
			"-b", strconv.Itoa(t.baudrate), t.endpoint.Device)
	}

	start := time.Now()
	output, err := t.run(ctx, "scan", cmd)
	if err != nil {
		return nil, err
	}

	addresses := parseScanOutput(output)
	for _, addr := range addresses {
		t.logger.Debug("found device during scan", "address", addr)
	}

	t.logger.Debug("scan complete",
		"devices", len(addresses),
		"duration", time.Since(start),
	)
	return addresses, nil
}

// Poll requests data from one device and parses the XML response.
//
// Address 0 is valid but is the factory-default address; polling it is
// logged as a warning because multiple unconfigured meters may answer.
func (t *CLITransport) Poll(ctx context.Context, address int) (*Reading, error) {
	if address < config.AddressMin || address > config.AddressMax {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAddress, address)
	}
	if address == 0 {
		t.logger.Warn("polling address 0 (factory-default M-Bus address)")
	}

	var cmd *exec.Cmd
	switch t.endpoint.Type {
	case EndpointTCP:
		cmd = exec.CommandContext(ctx, t.binary("mbus-tcp-request-data"),
			t.endpoint.Host, strconv.Itoa(t.endpoint.Port), strconv.Itoa(address))
	default:
		cmd = exec.CommandContext(ctx, t.binary("mbus-serial-request-data"),
			"-b", strconv.Itoa(t.baudrate), t.endpoint.Device, strconv.Itoa(address))
	}

	output, err := t.run(ctx, "poll", cmd)
	if err != nil {
		return nil, err
	}

	reading, err := ParseReading(output)
	if err != nil {
		return nil, newTransportError("poll", KindMalformed, err)
	}
	return reading, nil
}

// parseScanOutput extracts bus addresses from the scan tool's output.
func parseScanOutput(output []byte) []int {
	var addresses []int
	for _, match := range scanPattern.FindAllSubmatch(output, -1) {
		addr, err := strconv.Atoi(string(match[1]))
		if err != nil {
			continue
		}
		addresses = append(addresses, addr)
	}
	return addresses
}

// run executes cmd and classifies failures into TransportError kinds.
func (t *CLITransport) run(ctx context.Context, op string, cmd *exec.Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Deadline expiry kills the subprocess, which surfaces as a
		// non-zero exit; check the context to report it as a timeout.
		if ctx.Err() != nil {
			return nil, newTransportError(op, KindTimeout, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, newTransportError(op, KindIO,
				fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes())))
		}
		return nil, newTransportError(op, KindIO, err)
	}

	return stdout.Bytes(), nil
}

// binary resolves a libmbus tool name against the configured binary path.
// An empty path defers to PATH lookup by exec.
func (t *CLITransport) binary(name string) string {
	if t.binaryPath == "" {
		return name
	}
	return filepath.Join(t.binaryPath, name)
}
