package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfmodel/tfmodel/internal/engine"
	"github.com/tfmodel/tfmodel/internal/engine/enginetest"
)

// fakeResolver satisfies Resolver without a network.
type fakeResolver struct {
	path  string
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.path, r.err
}

func inputMessage() *Message {
	return &Message{Inputs: engine.NamedTensors{
		"x": {Shape: []int64{2}, Values: []float64{1, 2}},
	}}
}

func TestStartLoadsModel(t *testing.T) {
	resolver := &fakeResolver{path: "/cache/abc/model.json"}
	fake := &enginetest.Fake{}
	var statuses []string

	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		resolver,
		fake,
		Capabilities{Status: func(s string) { statuses = append(statuses, s) }},
	)

	require.NoError(t, n.Start(context.Background()))

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, []string{"/cache/abc/model.json"}, fake.LoadedPaths())
	assert.Equal(t, StatusReady, n.Status())
	assert.Equal(t, []string{StatusFetching, StatusLoading, StatusReady}, statuses)
}

func TestStartBlankURLSkipsResolve(t *testing.T) {
	resolver := &fakeResolver{}
	n := New(Definition{ID: "n1"}, resolver, &enginetest.Fake{}, Capabilities{})

	require.NoError(t, n.Start(context.Background()))

	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, StatusNoModel, n.Status())

	_, err := n.Input(context.Background(), inputMessage())
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestStartResolveFailure(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("network down")}
	n := New(Definition{ID: "n1", ModelURL: "https://h/m.json"}, resolver, &enginetest.Fake{}, Capabilities{})

	err := n.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, StatusError, n.Status())
}

func TestStartLoadFailure(t *testing.T) {
	fake := &enginetest.Fake{LoadErr: errors.New("bad topology")}
	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		&fakeResolver{path: "/p/model.json"},
		fake,
		Capabilities{},
	)

	err := n.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, n.Status())
}

func TestInput(t *testing.T) {
	want := []*engine.Tensor{{Shape: []int64{1}, Values: []float64{42}}}
	fake := &enginetest.Fake{Outputs: want}
	var sent []*Result

	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		&fakeResolver{path: "/p/model.json"},
		fake,
		Capabilities{Send: func(r *Result) { sent = append(sent, r) }},
	)
	require.NoError(t, n.Start(context.Background()))

	result, err := n.Input(context.Background(), inputMessage())
	require.NoError(t, err)
	assert.Equal(t, want, result.Outputs)

	require.Len(t, sent, 1)
	assert.Equal(t, result, sent[0])
}

func TestInputValidatesTensors(t *testing.T) {
	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		&fakeResolver{path: "/p/model.json"},
		&enginetest.Fake{},
		Capabilities{},
	)
	require.NoError(t, n.Start(context.Background()))

	bad := &Message{Inputs: engine.NamedTensors{
		"x": {Shape: []int64{3}, Values: []float64{1}},
	}}
	_, err := n.Input(context.Background(), bad)
	assert.ErrorIs(t, err, engine.ErrShapeMismatch)
}

func TestClose(t *testing.T) {
	fake := &enginetest.Fake{}
	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		&fakeResolver{path: "/p/model.json"},
		fake,
		Capabilities{},
	)
	require.NoError(t, n.Start(context.Background()))

	require.NoError(t, n.Close())
	assert.Equal(t, 1, fake.CloseCount())
	assert.Equal(t, StatusClosed, n.Status())

	// Idempotent.
	require.NoError(t, n.Close())
	assert.Equal(t, 1, fake.CloseCount())

	_, err := n.Input(context.Background(), inputMessage())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNilEngineRejectsInput(t *testing.T) {
	n := New(
		Definition{ID: "n1", ModelURL: "https://h/m.json"},
		&fakeResolver{path: "/p/model.json"},
		nil,
		Capabilities{},
	)
	require.NoError(t, n.Start(context.Background()))
	assert.Equal(t, StatusReady, n.Status())

	_, err := n.Input(context.Background(), inputMessage())
	assert.ErrorIs(t, err, ErrNoModel)
}
