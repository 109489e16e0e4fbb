package web

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"simlink/internal/state"
)

// Component is one subsystem shown on the status page. Detail may be nil.
type Component struct {
	Connected func() bool
	Detail    func() any
}

type Status struct {
	startUnixNano int64
	static        atomic.Value // map[string]any
	store         atomic.Pointer[state.Store]

	mu         sync.Mutex
	components map[string]Component
}

func NewStatus() *Status {
	s := &Status{components: make(map[string]Component)}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.static.Store(map[string]any{})
	return s
}

// SetStatic records the effective configuration summary.
func (s *Status) SetStatic(info map[string]any) {
	if info != nil {
		s.static.Store(info)
	}
}

// SetStore attaches the shared state shown under "aircraft" and "command".
func (s *Status) SetStore(store *state.Store) {
	s.store.Store(store)
}

// SetComponent registers or replaces a subsystem by name.
func (s *Status) SetComponent(name string, c Component) {
	s.mu.Lock()
	s.components[name] = c
	s.mu.Unlock()
}

type ComponentStatus struct {
	Connected bool `json:"connected"`
	Detail    any  `json:"detail,omitempty"`
}

type StatusSnapshot struct {
	Service    string                     `json:"service"`
	NowUTC     string                     `json:"now_utc"`
	UptimeSec  int64                      `json:"uptime_sec"`
	Config     map[string]any             `json:"config"`
	Components map[string]ComponentStatus `json:"components"`
	Aircraft   *state.AircraftState       `json:"aircraft,omitempty"`
	Command    *state.RemoteCommand       `json:"command,omitempty"`
}

// Connected reports the named component's flag; unknown names are false.
func (s StatusSnapshot) Connected(name string) bool {
	return s.Components[name].Connected
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:    "simlink",
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		Config:     s.static.Load().(map[string]any),
		Components: make(map[string]ComponentStatus),
	}

	s.mu.Lock()
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	comps := make([]Component, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		comps = append(comps, s.components[name])
	}
	s.mu.Unlock()

	// Component callbacks run outside s.mu; they take their own locks.
	for i, name := range names {
		var cs ComponentStatus
		if comps[i].Connected != nil {
			cs.Connected = comps[i].Connected()
		}
		if comps[i].Detail != nil {
			cs.Detail = comps[i].Detail()
		}
		snap.Components[name] = cs
	}

	if store := s.store.Load(); store != nil {
		ac, rc := store.Snapshot()
		snap.Aircraft = &ac
		snap.Command = &rc
	}
	return snap
}
