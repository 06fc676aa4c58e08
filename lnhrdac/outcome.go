package lnhrdac

import (
	"bytes"
	"strings"
)

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind uint8

const (
	// OutcomeSuccess means the device acknowledged the request; Payload holds the reply.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeHandshakeFailure means the reply was not the expected acknowledgement.
	OutcomeHandshakeFailure
	// OutcomeProtocolViolation means the reply cannot belong to the ASCII protocol.
	OutcomeProtocolViolation
)

// String returns string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeHandshakeFailure:
		return "handshake-failure"
	case OutcomeProtocolViolation:
		return "protocol-violation"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one exchange. Exactly one variant is set:
//
//   - OutcomeSuccess: Payload (trimmed reply text, empty for commands)
//   - OutcomeHandshakeFailure: Raw, and ReadErr when the read did not complete
//   - OutcomeProtocolViolation: Raw and Reason (query replies only)
type Outcome struct {
	TxID    string // transaction id, also logged with the exchange
	Kind    OutcomeKind
	Payload string
	Raw     []byte
	ReadErr error
	Reason  string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Err converts a failed outcome into the matching error for request. It returns nil on success.
func (o Outcome) Err(request string) error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeProtocolViolation:
		return &ProtocolError{TxID: o.TxID, Request: request, Response: o.Raw, Reason: o.Reason}
	default:
		return &HandshakeError{TxID: o.TxID, Request: request, Response: o.Raw, Err: o.ReadErr}
	}
}

func success(payload string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

func handshakeFailure(raw []byte, readErr error) Outcome {
	return Outcome{Kind: OutcomeHandshakeFailure, Raw: raw, ReadErr: readErr}
}

func protocolViolation(raw []byte, reason string) Outcome {
	return Outcome{Kind: OutcomeProtocolViolation, Raw: raw, Reason: reason}
}

// ClassifyCommandReply classifies the raw reply to a command.
//
// Any reply other than the exact acknowledgement, including non-ASCII bytes,
// is a handshake failure. readErr is the error that ended the read, if any.
func ClassifyCommandReply(raw []byte, readErr error) Outcome {
	if readErr != nil {
		return handshakeFailure(raw, readErr)
	}
	if string(raw) != ackSuccess {
		return handshakeFailure(raw, nil)
	}

	return success("")
}

// ClassifyQueryReply classifies the raw reply to a query read with the given framing.
//
// A single-line reply containing '?' is the device's error marker. Multi-line
// replies are informational texts and may legitimately contain '?'.
func ClassifyQueryReply(raw []byte, framing Framing, readErr error) Outcome {
	if readErr != nil {
		return handshakeFailure(raw, readErr)
	}
	if !isASCII(raw) {
		return protocolViolation(raw, "reply contains non-ASCII bytes")
	}
	if framing == FramingSingleLine && bytes.Contains(raw, []byte(queryMarker)) {
		return handshakeFailure(raw, nil)
	}

	return success(strings.TrimSpace(string(raw)))
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 0x7f {
			return false
		}
	}

	return true
}
