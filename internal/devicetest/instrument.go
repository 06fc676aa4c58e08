package devicetest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NumChannels is the channel count of the simulated instrument.
const NumChannels = 24

// Identification is the multi-line reply of the simulated instrument to "idn?".
// The '?' in the text must not be taken for an error marker.
const Identification = "Basel Precision Instruments GmbH\r\n" +
	"LNHR DAC II (SP1060)\r\n" +
	"Questions? Contact support\r\n" +
	"\r\r\n"

// informational lists the queries answered with a multi-line text.
var informational = map[string]string{
	"?":        "Basel Precision Instruments LNHR DAC II\r\nType help? for a list of commands\r\n\r\r\n",
	"help?":    "ch on/off: switch channel\r\nch s?: channel status\r\n\r\r\n",
	"soft?":    "Software version 1.0.0\r\n\r\r\n",
	"hard?":    "Hardware revision B\r\n\r\r\n",
	"idn?":     Identification,
	"health?":  "Temperature 35.0 C\r\nAll supplies OK\r\n\r\r\n",
	"ip?":      "IP 192.168.0.5\r\nMask 255.255.255.0\r\n\r\r\n",
	"serial?":  "Serial 1060-0001\r\n\r\r\n",
	"contact?": "support@baspi.ch\r\n\r\r\n",
}

// Instrument simulates the channel on/off state and the handshake of an LNHR DAC II.
//
// Supported requests: "<ch|all> on", "<ch|all> off", "<ch|all> s?", the
// informational queries such as "idn?", "c ..." control commands and "c ...?"
// control queries. Commands answer "0" on success and "1" on a syntax error;
// unknown queries answer "?".
type Instrument struct {
	mu sync.Mutex
	on [NumChannels]bool
}

// NewInstrument creates an instrument with all channels off.
func NewInstrument() *Instrument {
	return &Instrument{}
}

// Handler returns the stub handler driving the instrument.
func (in *Instrument) Handler() Handler {
	return in.handle
}

// IsOn reports whether channel ch (1-based) is on.
func (in *Instrument) IsOn(ch int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.on[ch-1]
}

func (in *Instrument) handle(line string) string {
	in.mu.Lock()
	defer in.mu.Unlock()

	line = strings.ToLower(strings.TrimSpace(line))

	if strings.HasSuffix(line, "?") {
		return in.query(line)
	}

	return in.command(line)
}

func (in *Instrument) query(line string) string {
	if text, ok := informational[line]; ok {
		return text
	}
	if strings.HasPrefix(line, "c ") {
		return "ok\r\n"
	}

	fields := strings.Fields(line)
	if len(fields) != 2 || fields[1] != "s?" {
		return "?\r\n"
	}

	if fields[0] == "all" {
		states := make([]string, 0, NumChannels)
		for _, on := range in.on {
			states = append(states, stateString(on))
		}

		return strings.Join(states, ";") + "\r\n"
	}

	ch, ok := parseChannel(fields[0])
	if !ok {
		return "?\r\n"
	}

	return stateString(in.on[ch-1]) + "\r\n"
}

func (in *Instrument) command(line string) string {
	if strings.HasPrefix(line, "c ") {
		return "0\r\n"
	}

	fields := strings.Fields(line)
	if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
		return "1\r\n"
	}
	on := fields[1] == "on"

	if fields[0] == "all" {
		for i := range in.on {
			in.on[i] = on
		}

		return "0\r\n"
	}

	ch, ok := parseChannel(fields[0])
	if !ok {
		return "1\r\n"
	}
	in.on[ch-1] = on

	return "0\r\n"
}

func parseChannel(s string) (int, bool) {
	ch, err := strconv.Atoi(s)
	if err != nil || ch < 1 || ch > NumChannels {
		return 0, false
	}

	return ch, true
}

func stateString(on bool) string {
	if on {
		return "ON"
	}

	return "OFF"
}

// String implements fmt.Stringer.
func (in *Instrument) String() string {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := 0
	for _, on := range in.on {
		if on {
			n++
		}
	}

	return fmt.Sprintf("Instrument(%d/%d on)", n, NumChannels)
}
