package cipher

import (
	"context"
	"testing"

	"github.com/RowanDark/citadel/internal/hill"
)

// mockOperation echoes its input.
type mockOperation struct {
	BaseOperation
}

func (m *mockOperation) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	return input, nil
}

func newMock(name string, t OperationType) *mockOperation {
	return &mockOperation{BaseOperation: BaseOperation{NameValue: name, TypeValue: t, DescriptionValue: name}}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	op := newMock("mock", OperationTypeEncrypt)

	if err := reg.Register(op); err != nil {
		t.Fatalf("failed to register operation: %v", err)
	}
	if err := reg.Register(op); err == nil {
		t.Fatal("expected error when registering duplicate operation")
	}
	if err := reg.Register(nil); err == nil {
		t.Fatal("expected error when registering nil operation")
	}
	if err := reg.Register(newMock("", OperationTypeEncrypt)); err == nil {
		t.Fatal("expected error when registering unnamed operation")
	}
}

func TestRegistryGetAndUnregister(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newMock("test-op", OperationTypeDecrypt)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	retrieved, exists := reg.Get("test-op")
	if !exists {
		t.Fatal("operation should exist")
	}
	if retrieved.Name() != "test-op" {
		t.Errorf("expected name 'test-op', got '%s'", retrieved.Name())
	}

	reg.Unregister("test-op")
	if _, exists := reg.Get("test-op"); exists {
		t.Fatal("operation should be gone after Unregister")
	}
}

func TestRegistryListIsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(newMock(name, OperationTypeEncrypt)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if err := reg.Register(newMock("other", OperationTypeNormalize)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ops := reg.List()
	want := []string{"alpha", "mid", "other", "zeta"}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d", len(want), len(ops))
	}
	for i, op := range ops {
		if op.Name() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, op.Name(), want[i])
		}
	}

	if got := reg.ListByType(OperationTypeNormalize); len(got) != 1 || got[0].Name() != "other" {
		t.Fatalf("ListByType(normalize) = %v", got)
	}
}

func TestDefaultRegistryContents(t *testing.T) {
	reg, err := NewDefaultRegistry(hill.DefaultEngine())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	tests := []struct {
		name    string
		opType  OperationType
		reverse string
	}{
		{OpHillEncrypt, OperationTypeEncrypt, OpHillDecrypt},
		{OpHillDecrypt, OperationTypeDecrypt, OpHillEncrypt},
		{OpCitadelEncrypt, OperationTypeEncrypt, OpCitadelDecrypt},
		{OpCitadelDecrypt, OperationTypeDecrypt, OpCitadelEncrypt},
		{OpAlphabetNormalize, OperationTypeNormalize, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := reg.Get(tt.name)
			if !ok {
				t.Fatalf("operation %s not registered", tt.name)
			}
			if op.Type() != tt.opType {
				t.Errorf("type = %s, want %s", op.Type(), tt.opType)
			}
			if op.Description() == "" {
				t.Error("description should not be empty")
			}
			reverse, ok := op.Reverse()
			if reverse != tt.reverse || ok != (tt.reverse != "") {
				t.Errorf("Reverse() = %q, %t", reverse, ok)
			}
		})
	}
}
