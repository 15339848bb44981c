package hill

import (
	"errors"
	"testing"
)

func TestSubstitutionReferenceTable(t *testing.T) {
	s, err := NewSubstitution(DefaultSBoxMultiplier, DefaultSBoxOffset, 26)
	if err != nil {
		t.Fatalf("NewSubstitution: %v", err)
	}
	for x := 0; x < 26; x++ {
		if got, want := s.Apply(x), (7*x+3)%26; got != want {
			t.Fatalf("S(%d) = %d, want %d", x, got, want)
		}
		// Closed form of the inverse: 15(y - 3) mod 26.
		if got, want := s.ApplyInverse(x), Reduce(15*(x-3), 26); got != want {
			t.Fatalf("S⁻¹(%d) = %d, want %d", x, got, want)
		}
	}
}

func TestSubstitutionBijective(t *testing.T) {
	for _, mod := range []int{26, 29, 37} {
		s, err := NewSubstitution(5, 11, mod)
		if err != nil {
			t.Fatalf("NewSubstitution(mod=%d): %v", mod, err)
		}
		seen := make(map[int]bool, mod)
		for x := 0; x < mod; x++ {
			y := s.Apply(x)
			if seen[y] {
				t.Fatalf("mod %d: S is not injective at %d", mod, x)
			}
			seen[y] = true
			if back := s.ApplyInverse(y); back != x {
				t.Fatalf("mod %d: S⁻¹(S(%d)) = %d", mod, x, back)
			}
		}
	}
}

func TestSubstitutionRejectsNonUnitMultiplier(t *testing.T) {
	for _, k := range []int{0, 2, 13, 26} {
		if _, err := NewSubstitution(k, 3, 26); !errors.Is(err, ErrInvalidSubstitution) {
			t.Errorf("k=%d: expected ErrInvalidSubstitution, got %v", k, err)
		}
	}
}
