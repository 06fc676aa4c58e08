package lnhrdac

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to match the kind and errors.As to get the details.
var (
	// ErrInvalidUsage indicates a query passed to a command entry point or vice versa,
	// or an empty or malformed request. It is always detected before any I/O.
	ErrInvalidUsage = errors.New("lnhrdac: invalid usage")

	// ErrConnection indicates that the telnet session could not be established or the
	// transport failed while writing a request.
	ErrConnection = errors.New("lnhrdac: connection failed")

	// ErrHandshake indicates that the device answered with something other than the
	// expected acknowledgement, or did not answer within the read timeout.
	ErrHandshake = errors.New("lnhrdac: handshake failure")

	// ErrProtocolViolation indicates a reply that cannot be part of the ASCII protocol.
	ErrProtocolViolation = errors.New("lnhrdac: protocol violation")
)

// UsageError describes a request rejected before it reached the device.
type UsageError struct {
	Method string
	Text   string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("lnhrdac: %s(%q): %s", e.Method, e.Text, e.Reason)
}

func (e *UsageError) Is(target error) bool { return target == ErrInvalidUsage }

// ConnectionError describes a transport failure towards the device.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("lnhrdac: connecting to the LNHR DAC II at %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// HandshakeError carries the request and the raw device reply of a failed exchange.
//
// Err is set when the read ended with an error (typically the read timeout) and
// Response then holds whatever was received before that. TxID matches the "id"
// attribute of the debug log lines of the exchange.
type HandshakeError struct {
	TxID     string
	Request  string
	Response []byte
	Err      error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lnhrdac: %q could not be processed by the LNHR DAC II, device answered %q before: %v",
			e.Request, e.Response, e.Err)
	}

	return fmt.Sprintf("lnhrdac: %q could not be processed by the LNHR DAC II, device answered %q",
		e.Request, e.Response)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func (e *HandshakeError) Is(target error) bool { return target == ErrHandshake }

// ProtocolError describes a reply that violates the ASCII framing of the device protocol.
type ProtocolError struct {
	TxID     string
	Request  string
	Response []byte
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("lnhrdac: %q: protocol violation: %s (device answered %q)", e.Request, e.Reason, e.Response)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocolViolation }
