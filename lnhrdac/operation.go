package lnhrdac

import (
	"slices"
	"strings"
)

// Line terminators of the device protocol.
const (
	lineTerminator      = "\r\n"
	multiLineTerminator = "\r\r"

	// ackSuccess is the complete reply of the device to a successfully processed command.
	ackSuccess = "0" + lineTerminator

	queryMarker = "?"
)

// multiLineQueries are the informational queries answered with several lines.
// Their reply ends with multiLineTerminator instead of lineTerminator.
var multiLineQueries = []string{"?", "help?", "soft?", "hard?", "idn?", "health?", "ip?", "serial?", "contact?"}

// MultiLineQueries returns the queries whose replies use multi-line framing.
func MultiLineQueries() []string {
	return slices.Clone(multiLineQueries)
}

// Kind is the declared intent of an Operation.
type Kind uint8

const (
	// KindCommand changes device state and is acknowledged with "0".
	KindCommand Kind = iota
	// KindQuery reads a textual payload.
	KindQuery
	// KindQueryExpectAnswer reads a payload and compares it with an expected answer.
	KindQueryExpectAnswer
)

// String returns string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	case KindQueryExpectAnswer:
		return "query-expect-answer"
	default:
		return "unknown"
	}
}

// method returns the entry point name used in usage errors.
func (k Kind) method() string {
	switch k {
	case KindCommand:
		return "SendCommand"
	case KindQuery:
		return "SendQuery"
	default:
		return "SendQueryExpectAnswer"
	}
}

// Class is the lexical category of a request. It selects the settling delay.
type Class uint8

const (
	// ClassPlain needs no settling delay.
	ClassPlain Class = iota
	// ClassControl is a control command or query (first character 'c').
	ClassControl
	// ClassControlWrite is a control command that writes device memory.
	ClassControlWrite
	// ClassMemory is a memory query (first character 'm').
	ClassMemory
	// ClassTransform is a transform query (first character 'x').
	ClassTransform
)

// String returns string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassPlain:
		return "plain"
	case ClassControl:
		return "control"
	case ClassControlWrite:
		return "control-write"
	case ClassMemory:
		return "memory"
	case ClassTransform:
		return "transform"
	default:
		return "unknown"
	}
}

// NeedsSettling reports whether the device needs the control settling delay after this class.
func (c Class) NeedsSettling() bool {
	return c != ClassPlain
}

// ClassifyCommand returns the class of a command text.
func ClassifyCommand(text string) Class {
	text = strings.TrimSpace(text)
	if text == "" {
		return ClassPlain
	}

	switch text[0] {
	case 'c', 'C':
		if strings.Contains(strings.ToLower(text), "write") {
			return ClassControlWrite
		}
		return ClassControl
	default:
		return ClassPlain
	}
}

// ClassifyQuery returns the class of a query text.
func ClassifyQuery(text string) Class {
	text = strings.TrimSpace(text)
	if text == "" {
		return ClassPlain
	}

	switch text[0] {
	case 'c', 'C':
		return ClassControl
	case 'm', 'M':
		return ClassMemory
	case 'x', 'X':
		return ClassTransform
	default:
		return ClassPlain
	}
}

// Framing is the termination policy of a response frame.
type Framing uint8

const (
	// FramingSingleLine ends the frame at CR LF.
	FramingSingleLine Framing = iota
	// FramingMultiLine ends the frame at CR CR.
	FramingMultiLine
)

// String returns string representation of the framing.
func (f Framing) String() string {
	if f == FramingMultiLine {
		return "multi-line"
	}

	return "single-line"
}

// Terminator returns the byte sequence that ends a frame.
func (f Framing) Terminator() string {
	if f == FramingMultiLine {
		return multiLineTerminator
	}

	return lineTerminator
}

// NormalizeQuery trims and lower-cases a query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// IsMultiLineQuery reports whether the reply to query uses multi-line framing.
func IsMultiLineQuery(query string) bool {
	return slices.Contains(multiLineQueries, NormalizeQuery(query))
}

// FramingFor returns the termination policy for the reply to query.
func FramingFor(query string) Framing {
	if IsMultiLineQuery(query) {
		return FramingMultiLine
	}

	return FramingSingleLine
}

// Operation is a single request issued by the caller.
type Operation struct {
	Text     string
	Kind     Kind
	Expected string // only used by KindQueryExpectAnswer
}

// NewCommand creates a command operation.
func NewCommand(text string) Operation {
	return Operation{Text: text, Kind: KindCommand}
}

// NewQuery creates a query operation.
func NewQuery(text string) Operation {
	return Operation{Text: text, Kind: KindQuery}
}

// NewQueryExpectAnswer creates a query operation with an expected answer.
func NewQueryExpectAnswer(text string, expected string) Operation {
	return Operation{Text: text, Kind: KindQueryExpectAnswer, Expected: expected}
}

// IsQuery reports whether the operation reads a payload.
func (op Operation) IsQuery() bool {
	return op.Kind != KindCommand
}

// Class returns the lexical class of the operation.
func (op Operation) Class() Class {
	if op.IsQuery() {
		return ClassifyQuery(op.Text)
	}

	return ClassifyCommand(op.Text)
}

// Framing returns the termination policy for the reply. Commands are always single-line.
func (op Operation) Framing() Framing {
	if op.IsQuery() {
		return FramingFor(op.Text)
	}

	return FramingSingleLine
}

// Validate checks the operation against the entry point of its kind.
// The returned error matches ErrInvalidUsage.
func (op Operation) Validate() error {
	fail := func(reason string) error {
		return &UsageError{Method: op.Kind.method(), Text: op.Text, Reason: reason}
	}

	if strings.TrimSpace(op.Text) == "" {
		return fail("empty request")
	}
	if strings.ContainsAny(op.Text, "\r\n") {
		return fail("request must not contain CR or LF, the line terminator is appended by the driver")
	}
	for i := 0; i < len(op.Text); i++ {
		if op.Text[i] > 0x7e || (op.Text[i] < 0x20 && op.Text[i] != '\t') {
			return fail("request must be printable ASCII")
		}
	}

	isQuery := strings.Contains(op.Text, queryMarker)
	switch {
	case op.Kind == KindCommand && isQuery:
		return fail("query commands are not allowed, use SendQuery instead")
	case op.Kind != KindCommand && !isQuery:
		return fail("non-query commands are not allowed, use SendCommand instead")
	}

	return nil
}
