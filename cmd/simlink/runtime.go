package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"simlink/internal/autopilot"
	"simlink/internal/bridge"
	"simlink/internal/config"
	"simlink/internal/flightpath"
	"simlink/internal/metrics"
	"simlink/internal/periodic"
	"simlink/internal/replay"
	"simlink/internal/serial"
	"simlink/internal/sim"
	"simlink/internal/state"
	"simlink/internal/statusled"
	"simlink/internal/tcp"
	"simlink/internal/udp"
	"simlink/internal/web"
)

type liveRuntime struct {
	cfg     config.Config
	logs    *web.LogBuffer
	metrics *metrics.Metrics
	status  *web.Status

	store  *state.Store
	engine *autopilot.Engine
	fp     *flightpath.Computer
	bridge *bridge.Bridge
	sup    *sim.Supervisor

	tcp    *tcp.Server
	serial *serial.Link
	mirror *udp.Mirror
	led    *statusled.Service
}

func newSource(cfg config.SimConfig) (sim.Source, error) {
	switch cfg.Source {
	case "xplane":
		return sim.NewXPlane(sim.XPlaneConfig{
			Addr:    cfg.XPlane.Addr,
			RateHz:  cfg.XPlane.RateHz,
			Timeout: cfg.XPlane.Timeout,
		}), nil
	case "ownship":
		return &sim.Ownship{
			CenterLatDeg: cfg.Ownship.CenterLatDeg,
			CenterLonDeg: cfg.Ownship.CenterLonDeg,
			AltFeet:      cfg.Ownship.AltFeet,
			AirspeedKt:   cfg.Ownship.AirspeedKt,
			RadiusNm:     cfg.Ownship.RadiusNm,
			Period:       cfg.Ownship.Period,
		}, nil
	case "scenario":
		scn, err := sim.LoadScenario(cfg.Scenario.Path)
		if err != nil {
			return nil, fmt.Errorf("load scenario %s: %w", cfg.Scenario.Path, err)
		}
		scn.Loop = cfg.Scenario.Loop
		return scn, nil
	case "replay":
		return &sim.Replay{
			Path:  cfg.Replay.Path,
			Speed: cfg.Replay.Speed,
			Loop:  cfg.Replay.Loop,
		}, nil
	default:
		return nil, fmt.Errorf("unknown sim source %q", cfg.Source)
	}
}

func newRuntime(cfg config.Config, logs *web.LogBuffer) (*liveRuntime, error) {
	src, err := newSource(cfg.Sim)
	if err != nil {
		return nil, err
	}

	r := &liveRuntime{
		cfg:     cfg,
		logs:    logs,
		metrics: metrics.New(),
		status:  web.NewStatus(),
		store:   state.New(),
		engine:  autopilot.New(cfg.Autopilot.Interval),
		fp: flightpath.New(flightpath.Config{
			Interval: cfg.FlightPath.Interval,
			Model:    cfg.FlightPath.Model,
			Filter:   cfg.FlightPath.Filter,
		}),
	}

	r.sup = sim.NewSupervisor(sim.SupervisorConfig{
		Source:    src,
		Store:     r.store,
		Retry:     cfg.Sim.Retry,
		OnConnect: r.simConnected,
		Metrics:   r.metrics,
	})
	r.bridge = bridge.New(r.store, r.sup, r.metrics)

	if cfg.TCP.Enable {
		r.tcp = tcp.New(r.bridge, r.metrics)
	}
	if cfg.Serial.Enable {
		r.serial = serial.New(serial.Config{
			Device:    cfg.Serial.Device,
			Baud:      cfg.Serial.Baud,
			LifeCheck: cfg.Serial.LifeCheck,
		}, r.bridge, r.metrics)
	}
	if cfg.UDP.Dest != "" {
		m, err := udp.NewMirror(cfg.UDP.Dest, r.metrics)
		if err != nil {
			// Keep running without the mirror.
			log.Printf("udp mirror init failed: %v", err)
		}
		r.mirror = m
	}
	if cfg.StatusLED.Enable {
		r.led = statusled.New(statusled.Config{
			Enable:   true,
			Chip:     cfg.StatusLED.Chip,
			Pin:      cfg.StatusLED.Pin,
			Interval: cfg.StatusLED.Interval,
		}, r.sup.Connected, r.metrics)
	}

	r.registerStatus()
	return r, nil
}

// simConnected runs at the start of every simulator session. Trend and
// filter history from the previous session is discarded and every control
// input is resent.
func (r *liveRuntime) simConnected() {
	r.engine.Reset()
	r.fp.Reset()
	r.bridge.SimReconnected()
}

func (r *liveRuntime) registerStatus() {
	r.status.SetStatic(r.cfg.Summary())
	r.status.SetStore(r.store)
	r.status.SetComponent("sim", web.Component{
		Connected: r.sup.Connected,
		Detail:    func() any { return r.sup.Snapshot() },
	})
	if r.tcp != nil {
		srv := r.tcp
		r.status.SetComponent("tcp", web.Component{
			Connected: func() bool { return srv.Sessions() > 0 },
			Detail: func() any {
				d := map[string]any{"running": srv.Running(), "sessions": srv.Sessions()}
				if addr, err := srv.Addr(); err == nil {
					d["addr"] = addr.String()
				}
				return d
			},
		})
	}
	if r.serial != nil {
		link := r.serial
		r.status.SetComponent("serial", web.Component{
			Connected: link.Connected,
			Detail:    func() any { return link.Snapshot() },
		})
	}
	if r.led != nil {
		led := r.led
		r.status.SetComponent("statusled", web.Component{
			Connected: func() bool { return led.Snapshot().Lit },
			Detail:    func() any { return led.Snapshot() },
		})
	}
}

// Run starts every configured subsystem and blocks until ctx is done or
// a required subsystem fails.
func (r *liveRuntime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	fail := func(err error) error {
		cancel()
		_ = g.Wait()
		return err
	}

	if err := r.sup.Start(ctx); err != nil {
		return fail(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		r.sup.Stop()
		return nil
	})

	g.Go(func() error {
		periodic.Run(ctx, "autopilot", r.cfg.Autopilot.Interval, r.metrics, func() {
			r.engine.Tick(r.store)
			r.bridge.Push()
		})
		return nil
	})
	g.Go(func() error {
		periodic.Run(ctx, "flightpath", r.cfg.FlightPath.Interval, r.metrics, func() {
			r.fp.Tick(r.store)
		})
		return nil
	})

	if r.tcp != nil {
		if err := r.tcp.Start(r.cfg.TCP.Port); err != nil {
			return fail(fmt.Errorf("tcp start: %w", err))
		}
		g.Go(func() error {
			<-ctx.Done()
			r.tcp.Stop()
			return nil
		})
	}

	if r.serial != nil {
		if err := r.serial.Start(ctx); err != nil {
			return fail(fmt.Errorf("serial start: %w", err))
		}
		g.Go(func() error {
			<-ctx.Done()
			r.serial.Close()
			return nil
		})
	}

	if r.mirror != nil {
		g.Go(func() error {
			defer r.mirror.Close()
			r.mirror.Run(ctx, r.cfg.UDP.Interval, func() []byte {
				return r.bridge.Telemetry("udp")
			})
			return nil
		})
	}

	if r.cfg.Record.Enable {
		g.Go(func() error {
			err := replay.RecordTelemetry(ctx, replay.RecorderConfig{
				Path:     r.cfg.Record.Path,
				Interval: r.cfg.Record.Interval,
			}, r.store, r.metrics)
			if err != nil {
				// Keep running even if recording fails.
				log.Printf("recorder stopped: %v", err)
			}
			return nil
		})
	}

	if r.led != nil {
		if err := r.led.Start(ctx); err != nil {
			// Keep running even if the LED fails to init.
			log.Printf("statusled init failed: %v", err)
		} else {
			g.Go(func() error {
				r.led.Wait()
				return nil
			})
		}
	}

	if r.cfg.Web.Listen != "" {
		g.Go(func() error {
			if err := web.Serve(ctx, r.cfg.Web.Listen, r.status, r.logs, r.metrics.Handler()); err != nil {
				log.Printf("web server stopped: %v", err)
			}
			return nil
		})
	}

	started := time.Now()
	err := g.Wait()
	log.Printf("simlink ran for %s", time.Since(started).Round(time.Second))
	return err
}
