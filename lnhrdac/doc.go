// Package lnhrdac is a driver for the Basel Precision Instruments LNHR DAC II,
// a 24 channel low noise high resolution DAC controlled over telnet.
//
// Requests are plain ASCII lines. The driver classifies each request, frames the
// reply, verifies the handshake and enforces the settling delays the device needs:
//
//	cfg, err := lnhrdac.NewConfig("192.168.0.5", lnhrdac.DefaultPort, lnhrdac.WithName("dac1"))
//	if err != nil {
//		return err
//	}
//	dev, _ := lnhrdac.New(cfg)
//	defer dev.Close()
//
//	if err := dev.SendCommand(ctx, "all off", false); err != nil {
//		return err
//	}
//	status, err := dev.SendQuery(ctx, "1 s?", false)
//
// Each transaction opens the telnet session, exchanges one request and reply and
// closes it again. Pass hold=true to keep the session for the next transaction.
//
// Failures are reported with the sentinel errors ErrInvalidUsage, ErrConnection,
// ErrHandshake and ErrProtocolViolation; use errors.As with *HandshakeError to get
// the raw reply of the device.
package lnhrdac
