package cipher

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RowanDark/citadel/internal/hill"
)

// Registry maps operation names to operations.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// NewDefaultRegistry returns a registry holding the mode operations and
// alphabet_normalize, all bound to engine.
func NewDefaultRegistry(engine *hill.Engine) (*Registry, error) {
	reg := NewRegistry()
	for _, op := range modeOperations(engine) {
		if err := reg.Register(op); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds op. Names must be unique.
func (r *Registry) Register(op Operation) error {
	if op == nil {
		return fmt.Errorf("cannot register nil operation")
	}
	name := op.Name()
	if name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("operation %s is already registered", name)
	}
	r.ops[name] = op
	return nil
}

// Get looks up an operation by name.
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, exists := r.ops[name]
	return op, exists
}

// List returns every operation sorted by name.
func (r *Registry) List() []Operation {
	return r.filter(func(Operation) bool { return true })
}

// ListByType returns the operations of one type sorted by name.
func (r *Registry) ListByType(opType OperationType) []Operation {
	return r.filter(func(op Operation) bool { return op.Type() == opType })
}

// Unregister removes an operation. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, name)
}

func (r *Registry) filter(keep func(Operation) bool) []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		if keep(op) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Name() < ops[j].Name()
	})
	return ops
}
