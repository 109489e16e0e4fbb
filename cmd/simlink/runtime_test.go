package main

import (
	"context"
	"io"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"simlink/internal/config"
	"simlink/internal/packet"
	"simlink/internal/units"
)

func ownshipConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
sim:
  source: ownship
  ownship:
    center_lat_deg: 45
    center_lon_deg: -122
    alt_feet: 3000
    airspeed_kt: 90
tcp:
  enable: true
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	cfg.TCP.Port = 0
	return cfg
}

func TestNewSource_KnowsEverySource(t *testing.T) {
	cfg := ownshipConfig(t)
	cfg.Sim.Scenario.Path = filepath.Join(t.TempDir(), "pattern.yaml")
	script := "keyframes:\n  - t: 0s\n    alt_feet: 1000\n  - t: 60s\n    alt_feet: 2000\n"
	if err := os.WriteFile(cfg.Sim.Scenario.Path, []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	for _, name := range []string{"xplane", "ownship", "scenario", "replay"} {
		cfg.Sim.Source = name
		src, err := newSource(cfg.Sim)
		if err != nil {
			t.Fatalf("newSource(%q) error: %v", name, err)
		}
		if src.Name() != name {
			t.Fatalf("name=%q want %q", src.Name(), name)
		}
	}
	cfg.Sim.Source = "fs2020"
	if _, err := newSource(cfg.Sim); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	cfg.Sim.Source = "scenario"
	cfg.Sim.Scenario.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := newSource(cfg.Sim); err == nil {
		t.Fatalf("expected error for missing scenario")
	}
}

func TestRuntime_ServesTelemetryOverTCP(t *testing.T) {
	rt, err := newRuntime(ownshipConfig(t), nil)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Run() did not return")
		}
	}()

	var addr net.Addr
	deadline := time.Now().Add(2 * time.Second)
	for {
		if a, err := rt.tcp.Addr(); err == nil {
			addr = a
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tcp server never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for !rt.sup.Connected() {
		if time.Now().After(deadline) {
			t.Fatalf("ownship source never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap := rt.status.Snapshot(time.Time{})
	if !snap.Connected("sim") {
		t.Fatalf("components=%+v", snap.Components)
	}

	// Ownship altitude follows the wall clock; stopping the source freezes
	// the store so the reply can be compared against it.
	rt.sup.Stop()

	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	cmd, _ := packet.Command{Flaps: 255, AltimeterPressurePa: 101325}.MarshalBinary()
	if _, err := c.Write(cmd); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, packet.TelemetrySize)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	var tel packet.Telemetry
	if err := tel.UnmarshalBinary(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}

	lat := units.RadToDeg(float64(tel.LatitudeRad))
	if math.Abs(lat-45) > 0.1 {
		t.Fatalf("lat=%.4f want ~45", lat)
	}
	ft := units.MetersToFeet(float64(tel.AltitudeM))
	if ft < 2490 || ft > 3510 {
		t.Fatalf("alt=%.1f ft want within 3000+-500", ft)
	}
	want := units.MetersToFeet(rt.store.Aircraft().Computed.AltitudeM)
	if math.Abs(ft-want) > 0.5 {
		t.Fatalf("alt=%.1f ft want %.1f from the store", ft, want)
	}
	if rc := rt.store.Command(); rc.Flaps != 1 {
		t.Fatalf("flaps=%v want 1", rc.Flaps)
	}
	if !rt.status.Snapshot(time.Time{}).Connected("tcp") {
		t.Fatalf("tcp session not reported")
	}
}
