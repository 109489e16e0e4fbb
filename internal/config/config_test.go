package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"simlink/internal/flightpath"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sim.Source != "xplane" || cfg.Sim.XPlane.Addr != "127.0.0.1:49000" {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.Sim.Retry != 5*time.Second {
		t.Fatalf("sim.retry=%s want 5s", cfg.Sim.Retry)
	}
	if cfg.Autopilot.Interval != time.Second/30 {
		t.Fatalf("autopilot.interval=%s", cfg.Autopilot.Interval)
	}
	if cfg.FlightPath.Interval != 500*time.Millisecond || cfg.FlightPath.Filter != 0.2 || cfg.FlightPath.Model != flightpath.Spherical {
		t.Fatalf("flightpath=%+v", cfg.FlightPath)
	}
	if cfg.TCP.Port != 4500 || cfg.Serial.Baud != 115200 || cfg.Serial.LifeCheck != 2*time.Second {
		t.Fatalf("tcp=%+v serial=%+v", cfg.TCP, cfg.Serial)
	}
	if cfg.Sim.Ownship.Period <= 0 || cfg.Sim.Ownship.RadiusNm <= 0 || cfg.Sim.Ownship.AirspeedKt <= 0 {
		t.Fatalf("expected ownship defaults applied")
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeTempConfig(t, `
sim:
  source: Ownship
  ownship:
    center_lat_deg: 47.5
    center_lon_deg: -122.3
    airspeed_kt: 110
flightpath:
  interval: 250ms
  earth_model: WGS84
  filter: 0.5
tcp:
  enable: true
  port: 5000
serial:
  enable: true
  device: /dev/ttyUSB0
udp:
  dest: 192.168.10.255:4500
record:
  enable: true
  path: /tmp/flight.log.zst
web:
  listen: ":8080"
log:
  file: /var/log/simlink.log
statusled:
  enable: true
  pin: 27
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sim.Source != "ownship" || cfg.Sim.Ownship.AirspeedKt != 110 || cfg.Sim.Ownship.CenterLatDeg != 47.5 {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.FlightPath.Model != flightpath.WGS84 || cfg.FlightPath.Filter != 0.5 {
		t.Fatalf("flightpath=%+v", cfg.FlightPath)
	}
	if !cfg.TCP.Enable || cfg.TCP.Port != 5000 {
		t.Fatalf("tcp=%+v", cfg.TCP)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" || cfg.UDP.Dest != "192.168.10.255:4500" || cfg.Web.Listen != ":8080" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Log.File != "/var/log/simlink.log" || cfg.Log.MaxSizeMB != 32 {
		t.Fatalf("log=%+v", cfg.Log)
	}
	if !cfg.StatusLED.Enable || cfg.StatusLED.Pin != 27 {
		t.Fatalf("statusled=%+v", cfg.StatusLED)
	}
	if got := cfg.Summary()["flightpath.model"]; got != "wgs84" {
		t.Fatalf("summary model=%v", got)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad source", "sim: {source: msfs}\n", `sim.source must be one of xplane, ownship, scenario, replay (got "msfs")`},
		{"scenario without path", "sim: {source: scenario}\n", "sim.scenario.path is required when sim.source is scenario"},
		{"replay without path", "sim: {source: replay}\n", "sim.replay.path is required when sim.source is replay"},
		{"negative replay speed", "sim: {source: replay, replay: {path: a.log, speed: -1}}\n", "sim.replay.speed must be > 0"},
		{"flightpath too fast", "flightpath: {interval: 100ms}\n", "flightpath.interval must be in [250ms,1s]"},
		{"flightpath too slow", "flightpath: {interval: 2s}\n", "flightpath.interval must be in [250ms,1s]"},
		{"bad filter", "flightpath: {filter: 1.5}\n", "flightpath.filter must be in (0,1]"},
		{"bad model", "flightpath: {earth_model: flat}\n", "flightpath.earth_model must be spherical or wgs84"},
		{"slow autopilot", "autopilot: {interval: 2s}\n", "autopilot.interval must be <= 1s"},
		{"bad port", "tcp: {port: 70000}\n", "tcp.port must be in [1,65535]"},
		{"serial without device", "serial: {enable: true}\n", "serial.device is required when serial.enable is true"},
		{"record without path", "record: {enable: true}\n", "record.path is required when record.enable is true"},
		{"record over replay", "sim: {source: replay, replay: {path: a.log}}\nrecord: {enable: true, path: a.log}\n", "record.path must differ from sim.replay.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("tcp: [\n")); err == nil {
		t.Fatalf("expected error")
	}
}
