package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"simlink/internal/flightpath"
)

type Config struct {
	Sim        SimConfig        `yaml:"sim"`
	Autopilot  AutopilotConfig  `yaml:"autopilot"`
	FlightPath FlightPathConfig `yaml:"flightpath"`
	TCP        TCPConfig        `yaml:"tcp"`
	Serial     SerialConfig     `yaml:"serial"`
	UDP        UDPConfig        `yaml:"udp"`
	Record     RecordConfig     `yaml:"record"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
	StatusLED  StatusLEDConfig  `yaml:"statusled"`
}

type SimConfig struct {
	// Source is one of xplane, ownship, scenario or replay.
	Source   string           `yaml:"source"`
	Retry    time.Duration    `yaml:"retry"`
	XPlane   XPlaneConfig     `yaml:"xplane"`
	Ownship  OwnshipSimConfig `yaml:"ownship"`
	Scenario ScenarioConfig   `yaml:"scenario"`
	Replay   ReplayConfig     `yaml:"replay"`
}

type XPlaneConfig struct {
	Addr    string        `yaml:"addr"`
	RateHz  int           `yaml:"rate_hz"`
	Timeout time.Duration `yaml:"timeout"`
}

type OwnshipSimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltFeet      int           `yaml:"alt_feet"`
	AirspeedKt   int           `yaml:"airspeed_kt"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
}

type ScenarioConfig struct {
	Path string `yaml:"path"`
	Loop bool   `yaml:"loop"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type AutopilotConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type FlightPathConfig struct {
	Interval   time.Duration `yaml:"interval"`
	EarthModel string        `yaml:"earth_model"`
	Filter     float64       `yaml:"filter"`

	// Model is EarthModel parsed by Load.
	Model flightpath.EarthModel `yaml:"-"`
}

type TCPConfig struct {
	Enable bool `yaml:"enable"`
	Port   int  `yaml:"port"`
}

type SerialConfig struct {
	Enable    bool          `yaml:"enable"`
	Device    string        `yaml:"device"`
	Baud      int           `yaml:"baud"`
	LifeCheck time.Duration `yaml:"life_check"`
}

type UDPConfig struct {
	// Dest enables the telemetry mirror when set.
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type RecordConfig struct {
	Enable   bool          `yaml:"enable"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

type WebConfig struct {
	// Listen enables the status API when set, e.g. ":8080".
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	// File enables a rotating log file when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type StatusLEDConfig struct {
	Enable   bool          `yaml:"enable"`
	Chip     string        `yaml:"chip"`
	Pin      int           `yaml:"pin"`
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	cfg.Sim.Source = strings.ToLower(strings.TrimSpace(cfg.Sim.Source))
	if cfg.Sim.Source == "" {
		cfg.Sim.Source = "xplane"
	}
	if cfg.Sim.Retry <= 0 {
		cfg.Sim.Retry = 5 * time.Second
	}
	if cfg.Sim.XPlane.Addr == "" {
		cfg.Sim.XPlane.Addr = "127.0.0.1:49000"
	}
	if cfg.Sim.XPlane.RateHz <= 0 {
		cfg.Sim.XPlane.RateHz = 30
	}
	if cfg.Sim.XPlane.Timeout <= 0 {
		cfg.Sim.XPlane.Timeout = 5 * time.Second
	}

	// Ownship defaults (safe even if another source is selected).
	if cfg.Sim.Ownship.Period <= 0 {
		cfg.Sim.Ownship.Period = 120 * time.Second
	}
	if cfg.Sim.Ownship.RadiusNm <= 0 {
		cfg.Sim.Ownship.RadiusNm = 0.5
	}
	if cfg.Sim.Ownship.AirspeedKt <= 0 {
		cfg.Sim.Ownship.AirspeedKt = 90
	}
	if cfg.Sim.Ownship.AltFeet == 0 {
		cfg.Sim.Ownship.AltFeet = 3000
	}
	if cfg.Sim.Replay.Speed == 0 {
		cfg.Sim.Replay.Speed = 1
	}

	if cfg.Autopilot.Interval <= 0 {
		cfg.Autopilot.Interval = time.Second / 30
	}
	if cfg.FlightPath.Interval <= 0 {
		cfg.FlightPath.Interval = 500 * time.Millisecond
	}
	if cfg.FlightPath.Filter == 0 {
		cfg.FlightPath.Filter = 0.2
	}

	if cfg.TCP.Port == 0 {
		cfg.TCP.Port = 4500
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.LifeCheck <= 0 {
		cfg.Serial.LifeCheck = 2 * time.Second
	}
	if cfg.UDP.Interval <= 0 {
		cfg.UDP.Interval = 100 * time.Millisecond
	}
	if cfg.Record.Interval <= 0 {
		cfg.Record.Interval = 100 * time.Millisecond
	}

	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 32
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}

	if cfg.StatusLED.Pin == 0 {
		cfg.StatusLED.Pin = 17
	}
	if cfg.StatusLED.Interval <= 0 {
		cfg.StatusLED.Interval = 250 * time.Millisecond
	}
}

func (cfg *Config) validate() error {
	switch cfg.Sim.Source {
	case "xplane", "ownship":
	case "scenario":
		if cfg.Sim.Scenario.Path == "" {
			return fmt.Errorf("sim.scenario.path is required when sim.source is scenario")
		}
	case "replay":
		if cfg.Sim.Replay.Path == "" {
			return fmt.Errorf("sim.replay.path is required when sim.source is replay")
		}
		if cfg.Sim.Replay.Speed < 0 {
			return fmt.Errorf("sim.replay.speed must be > 0")
		}
	default:
		return fmt.Errorf("sim.source must be one of xplane, ownship, scenario, replay (got %q)", cfg.Sim.Source)
	}

	if cfg.FlightPath.Interval < 250*time.Millisecond || cfg.FlightPath.Interval > time.Second {
		return fmt.Errorf("flightpath.interval must be in [250ms,1s]")
	}
	if cfg.FlightPath.Filter <= 0 || cfg.FlightPath.Filter > 1 {
		return fmt.Errorf("flightpath.filter must be in (0,1]")
	}
	model, ok := flightpath.ParseEarthModel(strings.ToLower(cfg.FlightPath.EarthModel))
	if !ok {
		return fmt.Errorf("flightpath.earth_model must be spherical or wgs84")
	}
	cfg.FlightPath.Model = model
	if cfg.Autopilot.Interval > time.Second {
		return fmt.Errorf("autopilot.interval must be <= 1s")
	}

	if cfg.TCP.Port < 0 || cfg.TCP.Port > 65535 {
		return fmt.Errorf("tcp.port must be in [1,65535]")
	}
	if cfg.Serial.Enable && strings.TrimSpace(cfg.Serial.Device) == "" {
		return fmt.Errorf("serial.device is required when serial.enable is true")
	}
	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
		if cfg.Sim.Source == "replay" && cfg.Record.Path == cfg.Sim.Replay.Path {
			return fmt.Errorf("record.path must differ from sim.replay.path")
		}
	}
	if cfg.StatusLED.Enable && cfg.StatusLED.Pin < 0 {
		return fmt.Errorf("statusled.pin must be > 0")
	}
	return nil
}

// Summary is the subset of settings shown on the status page.
func (cfg Config) Summary() map[string]any {
	return map[string]any{
		"sim.source":          cfg.Sim.Source,
		"autopilot.interval":  cfg.Autopilot.Interval.String(),
		"flightpath.interval": cfg.FlightPath.Interval.String(),
		"flightpath.model":    cfg.FlightPath.Model.String(),
		"tcp.enable":          cfg.TCP.Enable,
		"tcp.port":            cfg.TCP.Port,
		"serial.enable":       cfg.Serial.Enable,
		"serial.device":       cfg.Serial.Device,
		"udp.dest":            cfg.UDP.Dest,
		"record.enable":       cfg.Record.Enable,
	}
}
