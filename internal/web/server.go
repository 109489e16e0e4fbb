// Package web serves the status API: connectivity and state snapshots,
// recent logs, a live websocket stream and Prometheus metrics.
package web

import (
	"context"
	"fmt"
	"html"
	"log"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamInterval  = 100 * time.Millisecond
	streamWriteWait = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler builds the HTTP routes. logs and metrics may be nil.
func Handler(status *Status, logs *LogBuffer, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		stream(r.Context(), conn, status)
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allowGet(w, r) {
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		names := make([]string, 0, len(snap.Components))
		for name := range snap.Components {
			names = append(names, name)
		}
		sort.Strings(names)

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>simlink</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>simlink</h1><p>uptime %ds. See <a href=\"/api/status\">/api/status</a>.</p><ul>", snap.UptimeSec)
		for _, name := range names {
			state := "down"
			if snap.Components[name].Connected {
				state = "up"
			}
			_, _ = fmt.Fprintf(w, "<li>%s: %s</li>", html.EscapeString(name), state)
		}
		_, _ = fmt.Fprintf(w, "</ul></body></html>")
	})

	return mux
}

// stream pushes a status snapshot every streamInterval until the client
// goes away.
func stream(ctx context.Context, conn *websocket.Conn, status *Status) {
	defer conn.Close()

	// The server's read timeout is still armed on the hijacked conn.
	_ = conn.SetReadDeadline(time.Time{})
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(streamInterval)
	defer t.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(status.Snapshot(time.Now().UTC())); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-t.C:
		}
	}
}

func Serve(ctx context.Context, listenAddr string, status *Status, logs *LogBuffer, metrics http.Handler) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, logs, metrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
