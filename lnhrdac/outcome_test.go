package lnhrdac

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCommandReply(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		readErr error
		want    OutcomeKind
	}{
		{"Ack", "0\r\n", nil, OutcomeSuccess},
		{"Syntax Error", "1\r\n", nil, OutcomeHandshakeFailure},
		{"Ack Prefix Only", "0 \r\n", nil, OutcomeHandshakeFailure},
		{"Empty Line", "\r\n", nil, OutcomeHandshakeFailure},
		{"Timeout", "", os.ErrDeadlineExceeded, OutcomeHandshakeFailure},
		{"Partial Ack Then Timeout", "0", os.ErrDeadlineExceeded, OutcomeHandshakeFailure},
		{"Non ASCII", "0\xe9\r\n", nil, OutcomeHandshakeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ClassifyCommandReply([]byte(tt.raw), tt.readErr)
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.want == OutcomeSuccess, out.OK())
			assert.Empty(t, out.Payload)
		})
	}
}

func TestClassifyQueryReply(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		framing     Framing
		readErr     error
		want        OutcomeKind
		wantPayload string
	}{
		{"Single Line", "ON\r\n", FramingSingleLine, nil, OutcomeSuccess, "ON"},
		{"Single Line Padded", "  8.500000 \r\n", FramingSingleLine, nil, OutcomeSuccess, "8.500000"},
		{"Error Marker", "?\r\n", FramingSingleLine, nil, OutcomeHandshakeFailure, ""},
		{"Marker Inside", "ERR? 3\r\n", FramingSingleLine, nil, OutcomeHandshakeFailure, ""},
		{
			"Multi Line With Marker", "DAC II\r\nQuestions? Call us\r\n\r\r", FramingMultiLine, nil,
			OutcomeSuccess, "DAC II\r\nQuestions? Call us",
		},
		{"Timeout", "ON", FramingSingleLine, os.ErrDeadlineExceeded, OutcomeHandshakeFailure, ""},
		{"Non ASCII", "\xc3\xa9\r\n", FramingSingleLine, nil, OutcomeProtocolViolation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ClassifyQueryReply([]byte(tt.raw), tt.framing, tt.readErr)
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.wantPayload, out.Payload)
		})
	}
}

func TestOutcome_Err(t *testing.T) {
	require := require.New(t)

	require.NoError(success("ON").Err("1 s?"))

	err := handshakeFailure([]byte("1\r\n"), nil).Err("1 on")
	require.ErrorIs(err, ErrHandshake)

	var hsErr *HandshakeError
	require.True(errors.As(err, &hsErr))
	require.Equal("1 on", hsErr.Request)
	require.Equal([]byte("1\r\n"), hsErr.Response)

	err = handshakeFailure(nil, os.ErrDeadlineExceeded).Err("1 on")
	require.ErrorIs(err, ErrHandshake)
	require.ErrorIs(err, os.ErrDeadlineExceeded)

	err = protocolViolation([]byte{0xff}, "reply contains non-ASCII bytes").Err("1 s?")
	require.ErrorIs(err, ErrProtocolViolation)
	require.NotErrorIs(err, ErrHandshake)
}
