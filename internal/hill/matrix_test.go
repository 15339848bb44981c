package hill

import (
	"errors"
	"reflect"
	"testing"
)

func mustKey(t *testing.T, flat []int, size int) Matrix {
	t.Helper()
	m, err := ParseKey(flat, size, 26)
	if err != nil {
		t.Fatalf("ParseKey(%v): %v", flat, err)
	}
	return m
}

func TestParseKeyRequiresSquareCount(t *testing.T) {
	if _, err := ParseKey([]int{3, 5, 2}, 2, 26); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
	if _, err := ParseKey([]int{1}, 0, 26); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat for zero size, got %v", err)
	}
	if _, err := ParseKey([]int{1, 0, 0, 1}, 2, 0); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat for zero modulus, got %v", err)
	}
	m := mustKey(t, []int{29, -1, 2, 7}, 2)
	if got := m.Flat(); !reflect.DeepEqual(got, []int{3, 25, 2, 7}) {
		t.Fatalf("entries not reduced: %v", got)
	}
}

func TestMultiply(t *testing.T) {
	k := mustKey(t, []int{3, 5, 2, 7}, 2)
	if got := k.Multiply(Block{7, 4}); !reflect.DeepEqual(got, Block{15, 16}) {
		t.Fatalf("K·[7 4] = %v, want [15 16]", got)
	}
	if got := k.Multiply(Block{11, 15}); !reflect.DeepEqual(got, Block{4, 23}) {
		t.Fatalf("K·[11 15] = %v, want [4 23]", got)
	}
}

func TestInverse2x2(t *testing.T) {
	k := mustKey(t, []int{3, 5, 2, 7}, 2)
	if det := k.Determinant(); det != 11 {
		t.Fatalf("det = %d, want 11", det)
	}
	if adj := k.Adjugate().Flat(); !reflect.DeepEqual(adj, []int{7, 21, 24, 3}) {
		t.Fatalf("adj = %v, want [7 21 24 3]", adj)
	}
	inv, err := k.Inverse()
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	if got := inv.Flat(); !reflect.DeepEqual(got, []int{3, 9, 14, 5}) {
		t.Fatalf("inverse = %v, want [3 9 14 5]", got)
	}
}

func TestInverse3x3CofactorExpansion(t *testing.T) {
	k := mustKey(t, []int{6, 24, 1, 13, 16, 10, 20, 17, 15}, 3)
	inv, err := k.Inverse()
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	if got := inv.Flat(); !reflect.DeepEqual(got, []int{8, 5, 10, 21, 8, 21, 21, 12, 8}) {
		t.Fatalf("inverse = %v", got)
	}
	v := Block{0, 2, 19}
	if back := inv.Multiply(k.Multiply(v)); !reflect.DeepEqual(back, v) {
		t.Fatalf("K⁻¹·K·v = %v, want %v", back, v)
	}
}

func TestInverseRejectsNonUnitDeterminant(t *testing.T) {
	tests := [][]int{
		{2, 4, 6, 8},  // det -8 ≡ 18, even
		{1, 2, 3, 6},  // det 0
		{13, 0, 0, 1}, // det 13
		{2, 0, 0, 1},  // det 2
	}
	for _, flat := range tests {
		k := mustKey(t, flat, 2)
		if _, err := k.Inverse(); !errors.Is(err, ErrKeyNotInvertible) {
			t.Errorf("key %v: expected ErrKeyNotInvertible, got %v", flat, err)
		}
		if k.Invertible() {
			t.Errorf("key %v reported invertible", flat)
		}
	}
}

func TestZeroMatrix(t *testing.T) {
	var m Matrix
	if m.Invertible() {
		t.Fatal("zero matrix reported invertible")
	}
	if det := m.Determinant(); det != 0 {
		t.Fatalf("Determinant = %d, want 0", det)
	}
	if adj := m.Adjugate(); adj.Size() != 0 {
		t.Fatalf("Adjugate size = %d, want 0", adj.Size())
	}
	if _, err := m.Inverse(); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
}

func TestDeterminantGate(t *testing.T) {
	for a := 0; a < 26; a += 3 {
		for b := 1; b < 26; b += 4 {
			for c := 0; c < 26; c += 5 {
				for d := 2; d < 26; d += 3 {
					k := mustKey(t, []int{a, b, c, d}, 2)
					det := Reduce(a*d-b*c, 26)
					wantOK := GCD(det, 26) == 1
					inv, err := k.Inverse()
					if (err == nil) != wantOK {
						t.Fatalf("key %v det %d: err=%v, want ok=%t", k.Flat(), det, err, wantOK)
					}
					if err == nil {
						if got := inv.Multiply(k.Multiply(Block{1, 0})); !reflect.DeepEqual(got, Block{1, 0}) {
							t.Fatalf("key %v: inverse is wrong", k.Flat())
						}
					}
				}
			}
		}
	}
}
