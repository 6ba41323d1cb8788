// Package mbus reads metering data from an M-Bus network.
//
// The bus wire protocol itself is delegated to the libmbus CLI tools
// (mbus-serial-scan, mbus-serial-request-data, and their mbus-tcp-*
// counterparts). This package invokes them as subprocesses, parses the scan
// output and the XML poll responses, and exposes the results through the
// Transport interface:
//
//	transport, err := mbus.NewCLITransport(cfg.MBus)
//	if err != nil {
//	    return err
//	}
//	addresses, err := transport.Scan(ctx)
//	reading, err := transport.Poll(ctx, 5)
//
// Endpoints are either a serial device path (e.g. /dev/ttyUSB0) with a baud
// rate of 300, 2400 or 9600, or a strict IPv4:port TCP endpoint where the
// baud rate is ignored. See ParseEndpoint.
//
// All failures surface as *TransportError carrying a Kind (timeout, io,
// malformed) so the polling layer can apply a uniform retry policy.
package mbus
