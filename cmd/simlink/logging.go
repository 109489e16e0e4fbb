package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"simlink/internal/config"
	"simlink/internal/web"
)

// setupLogging tees the standard logger into stderr, the in-memory buffer
// behind /api/logs and, when configured, a rotating file. The returned
// func closes the file.
func setupLogging(cfg config.LogConfig, logs *web.LogBuffer) func() {
	writers := []io.Writer{os.Stderr}
	if logs != nil {
		writers = append(writers, logs)
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, file)
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return func() {
		if file == nil {
			return
		}
		log.SetOutput(os.Stderr)
		_ = file.Close()
		file = nil
	}
}
