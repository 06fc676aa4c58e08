package lnhrdac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// transact runs one complete transaction: validate, connect, exchange, settle and release.
//
// The session is released on every path once it was connected, including failures.
// A session broken by a transport failure is closed even when hold is set.
func (d *Device) transact(ctx context.Context, op Operation, hold bool) (out Outcome, err error) {
	if err := op.Validate(); err != nil {
		return Outcome{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sess.ensureConnected(ctx); err != nil {
		return Outcome{}, err
	}

	defer func() {
		if relErr := d.sess.release(ctx, hold); relErr != nil && err == nil {
			err = relErr
		}
	}()

	out, err = d.exchange(ctx, op)
	if err != nil {
		return Outcome{}, err
	}

	return out, out.Err(op.Text)
}

// exchange writes the request and reads exactly one response frame.
// The settling delay is applied whenever the request reached the device.
func (d *Device) exchange(ctx context.Context, op Operation) (Outcome, error) {
	txID := uuid.NewString()
	class := op.Class()
	framing := op.Framing()

	d.logger.Debug("lnhrdac: send request",
		"id", txID, "kind", op.Kind, "text", op.Text, "class", class, "framing", framing,
	)

	if err := d.sess.writeLine(op.Text); err != nil {
		d.metrics.incConnErrCount()
		d.logger.Debug("lnhrdac: failed to send request", "id", txID, "error", err)

		return Outcome{}, err
	}

	raw, readErr := d.sess.readFrame(framing.Terminator())

	if err := d.gov.settle(ctx, op.Kind, class); err != nil {
		d.sess.markBroken()
		return Outcome{}, fmt.Errorf("lnhrdac: %q: settling interrupted: %w", op.Text, err)
	}

	var out Outcome
	if op.IsQuery() {
		out = ClassifyQueryReply(raw, framing, readErr)
	} else {
		out = ClassifyCommandReply(raw, readErr)
	}
	out.TxID = txID
	d.metrics.record(op.Kind, out)

	d.logger.Debug("lnhrdac: received reply", "id", txID, "outcome", out.Kind, "raw", string(raw), "readErr", readErr)

	return out, nil
}
