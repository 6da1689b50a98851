// Package enginetest provides a fake engine implementation for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/tfmodel/tfmodel/internal/engine"
)

// Fake is an engine.Engine whose models echo a configured output.
type Fake struct {
	mu sync.Mutex

	// LoadErr, when set, fails every Load call.
	LoadErr error

	// Outputs is what every Predict call returns. When nil, Predict
	// echoes the inputs in name order.
	Outputs []*engine.Tensor

	// PredictErr, when set, fails every Predict call.
	PredictErr error

	loadedPaths []string
	closed      int
}

// Load records the entry path and returns a fake model.
func (f *Fake) Load(_ context.Context, entryPath string) (engine.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	f.loadedPaths = append(f.loadedPaths, entryPath)
	return &fakeModel{parent: f}, nil
}

// LoadedPaths returns every entry path passed to Load.
func (f *Fake) LoadedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loadedPaths...)
}

// CloseCount returns how many models have been closed.
func (f *Fake) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeModel struct {
	parent *Fake
}

func (m *fakeModel) Predict(_ context.Context, inputs engine.NamedTensors) ([]*engine.Tensor, error) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()
	if m.parent.PredictErr != nil {
		return nil, m.parent.PredictErr
	}
	if m.parent.Outputs != nil {
		return m.parent.Outputs, nil
	}

	out := make([]*engine.Tensor, 0, len(inputs))
	for _, t := range inputs {
		out = append(out, t)
	}
	return out, nil
}

func (m *fakeModel) Close() error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()
	m.parent.closed++
	return nil
}
