package hill

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestEngineParseKey(t *testing.T) {
	e := DefaultEngine()
	tests := []struct {
		name    string
		text    string
		want    []int
		wantErr bool
	}{
		{"reference", "3 5 2 7", []int{3, 5, 2, 7}, false},
		{"extra whitespace", "  3\t5\n2   7 ", []int{3, 5, 2, 7}, false},
		{"negative entries reduce", "-1 0 0 27", []int{25, 0, 0, 1}, false},
		{"too few", "3 5 2", nil, true},
		{"too many", "3 5 2 7 1", nil, true},
		{"non integer", "3 5 x 7", nil, true},
		{"empty", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := e.ParseKey(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyFormat) {
					t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey: %v", err)
			}
			if got := key.Flat(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("key = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineParseIV(t *testing.T) {
	e := DefaultEngine()
	iv, err := e.ParseIV("1 47")
	if err != nil {
		t.Fatalf("ParseIV: %v", err)
	}
	if !reflect.DeepEqual(iv, Block{1, 21}) {
		t.Fatalf("iv = %v, want [1 21]", iv)
	}
	for _, bad := range []string{"1", "1 2 3", "1 b", ""} {
		if _, err := e.ParseIV(bad); !errors.Is(err, ErrInvalidIVFormat) {
			t.Errorf("ParseIV(%q): expected ErrInvalidIVFormat, got %v", bad, err)
		}
	}
}

func TestFormatInts(t *testing.T) {
	if got := FormatInts([]int{3, 5, 2, 7}); got != "3 5 2 7" {
		t.Fatalf("FormatInts = %q", got)
	}
}

func TestGenerateKeyIsInvertible(t *testing.T) {
	e := DefaultEngine()
	for i := 0; i < 50; i++ {
		key, err := e.GenerateKey(nil)
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		if key.Size() != 2 || !key.Invertible() {
			t.Fatalf("generated key %v is not an invertible 2x2", key)
		}
	}
}

func TestGenerateIV(t *testing.T) {
	e := DefaultEngine()
	iv, err := e.GenerateIV(nil)
	if err != nil {
		t.Fatalf("GenerateIV: %v", err)
	}
	if len(iv) != 2 {
		t.Fatalf("iv length = %d", len(iv))
	}
	for _, v := range iv {
		if v < 0 || v >= 26 {
			t.Fatalf("iv value %d out of range", v)
		}
	}
	if _, err := e.GenerateIV(bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected error from exhausted reader")
	}
}
