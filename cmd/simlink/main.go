package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"simlink/internal/config"
	"simlink/internal/web"
)

func main() {
	var configPath string
	var summaryPath string
	flag.StringVar(&configPath, "config", "./simlink.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "log-summary", "", "Print a summary of a telemetry recording and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("log summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	closeLog := setupLogging(cfg.Log, logs)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, logs)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}

	log.Printf("simlink starting source=%s config=%s", cfg.Sim.Source, configPath)
	if err := rt.Run(ctx); err != nil {
		log.Printf("simlink stopped: %v", err)
		closeLog()
		os.Exit(1)
	}
	log.Printf("simlink stopping")
}
