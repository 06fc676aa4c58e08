package lnhrdac

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a device driver instance.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// ConnOpenCount indicates the number of telnet sessions opened.
	ConnOpenCount atomic.Uint64
	// ConnCloseCount indicates the number of telnet sessions closed.
	ConnCloseCount atomic.Uint64
	// ConnErrCount indicates the number of failed connection attempts and transport failures.
	ConnErrCount atomic.Uint64

	// CommandCount indicates the number of commands exchanged with the device.
	CommandCount atomic.Uint64
	// QueryCount indicates the number of queries exchanged with the device.
	QueryCount atomic.Uint64
	// HandshakeErrCount indicates the number of handshake failures.
	HandshakeErrCount atomic.Uint64
	// ProtocolErrCount indicates the number of protocol violations.
	ProtocolErrCount atomic.Uint64
}

func (m *Metrics) incConnOpenCount() {
	m.ConnOpenCount.Add(1)
}

func (m *Metrics) incConnCloseCount() {
	m.ConnCloseCount.Add(1)
}

func (m *Metrics) incConnErrCount() {
	m.ConnErrCount.Add(1)
}

// record counts one completed exchange.
func (m *Metrics) record(kind Kind, out Outcome) {
	if kind == KindCommand {
		m.CommandCount.Add(1)
	} else {
		m.QueryCount.Add(1)
	}

	switch out.Kind {
	case OutcomeHandshakeFailure:
		m.HandshakeErrCount.Add(1)
	case OutcomeProtocolViolation:
		m.ProtocolErrCount.Add(1)
	case OutcomeSuccess:
	}
}
