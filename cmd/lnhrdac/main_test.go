package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BASPI/LNHRDACII-tools/bench"
	"github.com/BASPI/LNHRDACII-tools/config"
	"github.com/BASPI/LNHRDACII-tools/internal/devicetest"
	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
)

func hostArgs(stub *devicetest.Stub, args ...string) []string {
	return append([]string{"-host", stub.Host(), "-port", strconv.Itoa(stub.Port())}, args...)
}

func TestRun_SingleDevice(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	inst := devicetest.NewInstrument()
	stub := devicetest.NewStub(t, inst.Handler())

	var out bytes.Buffer
	require.NoError(run(ctx, hostArgs(stub, "cmd", "3 on"), &out))
	require.Equal("OK\n", out.String())
	require.True(inst.IsOn(3))

	out.Reset()
	require.NoError(run(ctx, hostArgs(stub, "query", "3 s?"), &out))
	require.Equal("ON\n", out.String())

	out.Reset()
	require.NoError(run(ctx, hostArgs(stub, "expect", "3 s?", "ON"), &out))
	require.Equal("true\n", out.String())

	out.Reset()
	require.Error(run(ctx, hostArgs(stub, "expect", "4 s?", "ON"), &out))
	require.Equal("false\n", out.String())

	out.Reset()
	require.NoError(run(ctx, hostArgs(stub, "status"), &out))
	require.Contains(out.String(), "Connected to device ("+stub.Host()+") successfully.")
	require.Contains(out.String(), "OFF;OFF;ON;OFF")
}

func TestRun_Errors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	stub := devicetest.NewStub(t, devicetest.NewInstrument().Handler())

	var out bytes.Buffer
	require.ErrorIs(run(ctx, hostArgs(stub), &out), errUsage)
	require.ErrorIs(run(ctx, hostArgs(stub, "reboot"), &out), errUsage)
	require.Error(run(ctx, hostArgs(stub, "cmd"), &out))

	err := run(ctx, hostArgs(stub, "cmd", "all s?"), &out)
	require.ErrorIs(err, lnhrdac.ErrInvalidUsage)

	err = run(ctx, hostArgs(stub, "cmd", "al off"), &out)
	require.ErrorIs(err, lnhrdac.ErrHandshake)

	err = run(ctx, []string{"-host", "bad host", "status"}, &out)
	require.Error(err)

	err = run(ctx, hostArgs(stub, "-log-level", "loud", "status"), &out)
	require.Error(err)
}

func writeBench(t *testing.T, stubs map[string]*devicetest.Stub) string {
	t.Helper()

	cfg := &config.Config{}
	for name, stub := range stubs {
		cfg.Devices = append(cfg.Devices, config.DeviceConfig{Name: name, Host: stub.Host(), Port: stub.Port()})
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	return path
}

func TestRun_BenchFile(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	inst1, inst2 := devicetest.NewInstrument(), devicetest.NewInstrument()
	path := writeBench(t, map[string]*devicetest.Stub{
		"dac1": devicetest.NewStub(t, inst1.Handler()),
		"dac2": devicetest.NewStub(t, inst2.Handler()),
	})

	var out bytes.Buffer
	require.NoError(run(ctx, []string{"-config", path, "-device", "dac2", "cmd", "all on"}, &out))
	require.False(inst1.IsOn(1))
	require.True(inst2.IsOn(1))

	// single-device subcommands need a selection when several devices are configured
	err := run(ctx, []string{"-config", path, "query", "1 s?"}, &out)
	require.ErrorContains(err, "select one with -device")

	err = run(ctx, []string{"-config", path, "-device", "dac9", "status"}, &out)
	require.ErrorContains(err, "not found")

	out.Reset()
	require.NoError(run(ctx, []string{"-config", path, "all-off"}, &out))
	require.Equal("dac1: all channels off\ndac2: all channels off\n", out.String())
	require.False(inst2.IsOn(1))

	out.Reset()
	require.NoError(run(ctx, []string{"-config", path, "status"}, &out))
	require.Equal(2, strings.Count(out.String(), "successfully"))
	require.Contains(out.String(), `"dac1"`)

	err = run(ctx, []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "status"}, &out)
	require.ErrorContains(err, "no devices configured")
}

func TestRun_Smoke(t *testing.T) {
	require := require.New(t)

	stub := devicetest.NewStub(t, devicetest.NewInstrument().Handler())

	var out bytes.Buffer
	require.NoError(run(context.Background(), hostArgs(stub, "smoke"), &out))

	report := out.String()
	require.Regexp(`command "all off"\s+OK`, report)
	require.Contains(report, "use SendQuery instead")
	require.Contains(report, "use SendCommand instead")
	require.Contains(report, `could not be processed by the LNHR DAC II, device answered "1\r\n"`)
	require.Regexp(`expect "1 s\?" == "OFF"\s+true`, report)
	require.Contains(report, "Questions? Contact support")
	require.Equal(2, strings.Count(report, "Serial 1060-0001"))
	require.NotContains(report, "idn? error")
}

func TestConsole_Execute(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	inst := devicetest.NewInstrument()
	stub1 := devicetest.NewStub(t, inst.Handler())
	stub2 := devicetest.NewStub(t, devicetest.NewInstrument().Handler())

	cfg := &config.Config{Devices: []config.DeviceConfig{
		{Name: "dac1", Host: stub1.Host(), Port: stub1.Port()},
		{Name: "dac2", Host: stub2.Host(), Port: stub2.Port()},
	}}
	b, err := bench.FromConfig(cfg)
	require.NoError(err)
	t.Cleanup(func() { _ = b.CloseAll() })

	var out bytes.Buffer
	c := &console{bench: b, out: &out}
	require.NoError(c.use("dac1"))

	require.NoError(c.execute(ctx, "5 on"))
	require.True(inst.IsOn(5))

	require.NoError(c.execute(ctx, "5 s?"))
	require.NoError(c.execute(ctx, "expect 5 s? = ON"))
	require.Equal("OK\nON\ntrue\n", out.String())

	require.Error(c.execute(ctx, "expect 5 s?"))
	require.ErrorIs(c.execute(ctx, "al off"), lnhrdac.ErrHandshake)

	require.NoError(c.execute(ctx, "hold on"))
	require.NoError(c.execute(ctx, "1 on"))
	require.True(c.dev.IsConnected())
	require.NoError(c.execute(ctx, "close"))
	require.False(c.dev.IsConnected())
	require.Error(c.execute(ctx, "hold maybe"))

	out.Reset()
	require.NoError(c.execute(ctx, "devices"))
	require.Contains(out.String(), "* dac1")

	require.NoError(c.execute(ctx, "use dac2"))
	require.Equal("dac2", c.dev.Name())
	require.Error(c.execute(ctx, "use dac9"))
}
