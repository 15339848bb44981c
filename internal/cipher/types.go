package cipher

import (
	"context"
	"fmt"
)

// OperationType groups operations by what they do to their input.
type OperationType string

const (
	OperationTypeEncrypt   OperationType = "encrypt"
	OperationTypeDecrypt   OperationType = "decrypt"
	OperationTypeNormalize OperationType = "normalize"
)

// Operation transforms alphabet text. Implementations must be safe for
// concurrent use.
type Operation interface {
	// Name returns the unique identifier for this operation
	Name() string

	// Type returns the category of this operation
	Type() OperationType

	// Description returns a human-readable description
	Description() string

	// Execute applies the operation to the input text
	Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error)

	// Reverse returns the name of the inverse operation if one exists
	Reverse() (string, bool)
}

// OperationConfig names one pipeline stage and its parameters.
type OperationConfig struct {
	Name       string                 `json:"name" yaml:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Pipeline is an ordered chain of operations.
type Pipeline struct {
	Operations []OperationConfig `json:"operations" yaml:"operations"`
	Reversible bool              `json:"reversible" yaml:"reversible"`
}

// Execute runs every stage in order against reg, feeding each output into
// the next stage.
func (p *Pipeline) Execute(ctx context.Context, reg *Registry, input []byte) ([]byte, error) {
	result := input
	for i, opConfig := range p.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, exists := reg.Get(opConfig.Name)
		if !exists {
			return nil, fmt.Errorf("unknown operation at step %d: %s", i, opConfig.Name)
		}

		out, err := op.Execute(ctx, result, opConfig.Parameters)
		if err != nil {
			return nil, fmt.Errorf("operation %s failed at step %d: %w", opConfig.Name, i, err)
		}
		result = out
	}
	return result, nil
}

// Reverse builds the inverse pipeline: stages in reverse order, each
// replaced by its inverse operation with the same parameters.
func (p *Pipeline) Reverse(reg *Registry) (*Pipeline, error) {
	if !p.Reversible {
		return nil, fmt.Errorf("pipeline is not reversible")
	}

	n := len(p.Operations)
	reversed := &Pipeline{Operations: make([]OperationConfig, n), Reversible: true}
	for i, opConfig := range p.Operations {
		op, exists := reg.Get(opConfig.Name)
		if !exists {
			return nil, fmt.Errorf("unknown operation: %s", opConfig.Name)
		}
		inverse, ok := op.Reverse()
		if !ok {
			return nil, fmt.Errorf("operation %s is not reversible", opConfig.Name)
		}
		reversed.Operations[n-1-i] = OperationConfig{Name: inverse, Parameters: opConfig.Parameters}
	}
	return reversed, nil
}

// Recipe is a named, reusable pipeline.
type Recipe struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Pipeline    Pipeline `json:"pipeline" yaml:"pipeline"`
	CreatedAt   string   `json:"created_at" yaml:"created_at"`
	UpdatedAt   string   `json:"updated_at" yaml:"updated_at"`
}

// BaseOperation carries the descriptive fields shared by every operation.
type BaseOperation struct {
	NameValue        string
	TypeValue        OperationType
	DescriptionValue string
	ReverseName      string
}

func (b *BaseOperation) Name() string {
	return b.NameValue
}

func (b *BaseOperation) Type() OperationType {
	return b.TypeValue
}

func (b *BaseOperation) Description() string {
	return b.DescriptionValue
}

func (b *BaseOperation) Reverse() (string, bool) {
	return b.ReverseName, b.ReverseName != ""
}
