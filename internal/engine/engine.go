// Package engine defines the contract between tfmodel and the tensor-graph
// execution runtime that actually runs models.
//
// The cache and node host treat the runtime as opaque: it accepts a local
// path to a model's entry file (with shard files co-located in the same
// directory) and produces a handle that executes named-tensor predictions.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a tensor's value count does not match
// its declared shape.
var ErrShapeMismatch = errors.New("tensor values do not match shape")

// Tensor is a dense numeric tensor with row-major values.
type Tensor struct {
	Shape  []int64   `json:"shape"`
	Values []float64 `json:"values"`
}

// NumElements returns the element count implied by the tensor's shape.
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that the value count matches the shape.
func (t *Tensor) Validate() error {
	if int64(len(t.Values)) != t.NumElements() {
		return fmt.Errorf("%w: shape %v implies %d values, got %d",
			ErrShapeMismatch, t.Shape, t.NumElements(), len(t.Values))
	}
	return nil
}

// NamedTensors maps input names to tensors, matching the model's declared
// input signature.
type NamedTensors map[string]*Tensor

// Validate checks every tensor in the map.
func (n NamedTensors) Validate() error {
	for name, t := range n {
		if t == nil {
			return fmt.Errorf("input %q: nil tensor", name)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
	}
	return nil
}

// Engine loads models from local entry files.
type Engine interface {
	// Load builds an executable model from the entry file at entryPath.
	// Shard files are expected next to the entry file.
	Load(ctx context.Context, entryPath string) (Model, error)
}

// Model is a loaded, executable model.
type Model interface {
	// Predict executes the model against named inputs and returns the
	// output tensors in the model's declared output order.
	Predict(ctx context.Context, inputs NamedTensors) ([]*Tensor, error)

	// Close releases the model's resources. A model must not be used
	// after Close.
	Close() error
}
