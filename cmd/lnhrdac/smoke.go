package main

import (
	"context"
	"fmt"
	"io"

	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
)

// runSmoke exercises every entry point of the driver, including the expected
// failure modes, and prints what the device answered.
func runSmoke(ctx context.Context, dev *lnhrdac.Device, out io.Writer) error {
	status, err := dev.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, greeting(dev, status))

	report := func(label string, result any, err error) {
		if err != nil {
			fmt.Fprintf(out, "%-28s error: %v\n", label, err)
			return
		}
		fmt.Fprintf(out, "%-28s %v\n", label, result)
	}

	fmt.Fprintln(out, "== send command ==")
	report(`command "all off"`, "OK", dev.SendCommand(ctx, "all off", false))
	report(`command "all s?"`, nil, dev.SendCommand(ctx, "all s?", false))
	report(`command "al off"`, nil, dev.SendCommand(ctx, "al off", false))

	fmt.Fprintln(out, "== send query ==")
	reply, err := dev.SendQuery(ctx, "all s?", false)
	report(`query "all s?"`, reply, err)
	reply, err = dev.SendQuery(ctx, "all off", false)
	report(`query "all off"`, reply, err)
	reply, err = dev.SendQuery(ctx, "al s?", false)
	report(`query "al s?"`, reply, err)

	fmt.Fprintln(out, "== expect query answer ==")
	ok, err := dev.SendQueryExpectAnswer(ctx, "1 s?", "OFF", false)
	report(`expect "1 s?" == "OFF"`, ok, err)
	ok, err = dev.SendQueryExpectAnswer(ctx, "all off", "ON", false)
	report(`expect "all off" == "ON"`, ok, err)
	ok, err = dev.SendQueryExpectAnswer(ctx, "al s?", "ON", false)
	report(`expect "al s?" == "ON"`, ok, err)

	// once with a fresh session per query, once on a single held session
	for _, hold := range []bool{false, true} {
		fmt.Fprintf(out, "== multi-line queries (hold=%t) ==\n", hold)
		for _, query := range lnhrdac.MultiLineQueries() {
			reply, err := dev.SendQuery(ctx, query, hold)
			if err != nil {
				fmt.Fprintf(out, "%s error: %v\n", query, err)
				continue
			}
			fmt.Fprintf(out, "%s\n%s\n-------------\n", query, reply)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return dev.Close()
}
