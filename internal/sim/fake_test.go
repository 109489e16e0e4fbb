package sim

import (
	"context"
	"errors"
	"sync"
)

// fakeSource fails its first failRuns sessions, then emits one sample per
// session and blocks until cancelled.
type fakeSource struct {
	failRuns int
	sample   Sample

	mu      sync.Mutex
	runs    int
	applied []Value
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Run(ctx context.Context, onSample func(Sample)) error {
	f.mu.Lock()
	f.runs++
	fail := f.runs <= f.failRuns
	f.mu.Unlock()
	if fail {
		return errors.New("no simulator")
	}
	onSample(f.sample)
	<-ctx.Done()
	return nil
}

func (f *fakeSource) Apply(cmd Command, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, Value{cmd, value})
	return nil
}

func (f *fakeSource) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func (f *fakeSource) Applied() []Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Value(nil), f.applied...)
}
