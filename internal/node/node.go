// Package node hosts model nodes: units that resolve a configured model URL
// once at startup, run incoming named-tensor messages through the loaded
// model, and release the model on close.
//
// The host runtime's callback surface (status reporting, downstream sends)
// is injected as a Capabilities value rather than inherited, so the same
// node runs under the HTTP server and under tests unchanged.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tfmodel/tfmodel/internal/engine"
	"github.com/tfmodel/tfmodel/internal/logging"
)

// Node errors.
var (
	// ErrNoModel is returned for input messages when the node has no loaded
	// model, either because no URL was configured or Start failed.
	ErrNoModel = errors.New("node has no loaded model")

	// ErrClosed is returned for operations on a closed node.
	ErrClosed = errors.New("node is closed")
)

// Status levels mirrored to the host's status indicator.
const (
	StatusFetching = "fetching model"
	StatusLoading  = "loading model"
	StatusReady    = "ready"
	StatusError    = "error"
	StatusClosed   = "closed"
	StatusNoModel  = "no model configured"
)

// Definition configures one node.
type Definition struct {
	ID       string
	Name     string
	ModelURL string
}

// Message is one inbound request: a mapping of named input tensors.
type Message struct {
	Inputs engine.NamedTensors `json:"inputs"`
}

// Result is the outbound product of one message: the model's output tensors
// in declared order.
type Result struct {
	Outputs []*engine.Tensor `json:"outputs"`
}

// Capabilities is the injected host callback surface. Nil fields are
// ignored.
type Capabilities struct {
	// Status reports a human-readable node state change.
	Status func(status string)

	// Send delivers a result downstream.
	Send func(result *Result)
}

// Resolver resolves a model URL to a local entry path. *modelcache.Cache
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Node is one hosted model node.
type Node struct {
	def      Definition
	resolver Resolver
	engine   engine.Engine
	caps     Capabilities

	mu     sync.Mutex
	model  engine.Model
	status string
	closed bool
}

// New builds a Node. The engine may be nil, in which case the node resolves
// and caches its model but rejects input messages.
func New(def Definition, resolver Resolver, eng engine.Engine, caps Capabilities) *Node {
	return &Node{
		def:      def,
		resolver: resolver,
		engine:   eng,
		caps:     caps,
		status:   StatusNoModel,
	}
}

// Definition returns the node's configuration.
func (n *Node) Definition() Definition {
	return n.def
}

// Status returns the node's last reported status.
func (n *Node) Status() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// setStatus records the status and mirrors it to the host callback.
func (n *Node) setStatus(status string) {
	n.mu.Lock()
	n.status = status
	n.mu.Unlock()
	if n.caps.Status != nil {
		n.caps.Status(status)
	}
}

// Start resolves and loads the node's model. A blank model URL means the
// node starts without a model and never touches the network.
func (n *Node) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if n.def.ModelURL == "" {
		n.setStatus(StatusNoModel)
		log.Info().
			Str("component", "node").
			Str("node_id", n.def.ID).
			Msg("no model URL configured, node starts empty")
		return nil
	}

	n.setStatus(StatusFetching)
	entryPath, err := n.resolver.Resolve(ctx, n.def.ModelURL)
	if err != nil {
		n.setStatus(StatusError)
		return fmt.Errorf("resolving model for node %s: %w", n.def.ID, err)
	}

	if n.engine == nil {
		// Cache is warm but nothing can execute the model.
		n.setStatus(StatusReady)
		log.Warn().
			Str("component", "node").
			Str("node_id", n.def.ID).
			Msg("model resolved but no engine is configured, inputs will be rejected")
		return nil
	}

	n.setStatus(StatusLoading)
	model, err := n.engine.Load(ctx, entryPath)
	if err != nil {
		n.setStatus(StatusError)
		return fmt.Errorf("loading model for node %s: %w", n.def.ID, err)
	}

	n.mu.Lock()
	n.model = model
	n.mu.Unlock()
	n.setStatus(StatusReady)

	log.Info().
		Str("component", "node").
		Str("node_id", n.def.ID).
		Str("model_url", n.def.ModelURL).
		Str("entry_path", entryPath).
		Msg("node ready")
	return nil
}

// Input runs one message through the loaded model, returns the result, and
// delivers it via the Send capability when present.
func (n *Node) Input(ctx context.Context, msg *Message) (*Result, error) {
	n.mu.Lock()
	model := n.model
	closed := n.closed
	n.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if model == nil {
		return nil, ErrNoModel
	}
	if err := msg.Inputs.Validate(); err != nil {
		return nil, err
	}

	outputs, err := model.Predict(ctx, msg.Inputs)
	if err != nil {
		return nil, fmt.Errorf("prediction on node %s: %w", n.def.ID, err)
	}

	result := &Result{Outputs: outputs}
	if n.caps.Send != nil {
		n.caps.Send(result)
	}
	return result, nil
}

// Close releases the node's model resources. Close is idempotent.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	model := n.model
	n.model = nil
	n.mu.Unlock()

	n.setStatus(StatusClosed)
	if model != nil {
		return model.Close()
	}
	return nil
}
