package hill

import "fmt"

// Reference S-box parameters: S(x) = (7x + 3) mod 26.
const (
	DefaultSBoxMultiplier = 7
	DefaultSBoxOffset     = 3
)

// Substitution is the affine S-box S(x) = (k*x + c) mod MOD together with its
// inverse. Both tables are computed once and never modified.
type Substitution struct {
	k, c, mod int
	forward   []int
	inverse   []int
}

// NewSubstitution builds the S-box for the given parameters. k must be a
// unit mod mod.
func NewSubstitution(k, c, mod int) (*Substitution, error) {
	if mod < 2 {
		return nil, fmt.Errorf("%w: modulus must be at least 2, got %d", ErrInvalidSubstitution, mod)
	}
	if _, ok := ModInverse(k, mod); !ok {
		return nil, fmt.Errorf("%w: multiplier %d is not invertible mod %d", ErrInvalidSubstitution, k, mod)
	}
	s := &Substitution{
		k:       Reduce(k, mod),
		c:       Reduce(c, mod),
		mod:     mod,
		forward: make([]int, mod),
		inverse: make([]int, mod),
	}
	for x := 0; x < mod; x++ {
		y := Reduce(s.k*x+s.c, mod)
		s.forward[x] = y
		s.inverse[y] = x
	}
	return s, nil
}

// Params returns the multiplier, offset and modulus.
func (s *Substitution) Params() (k, c, mod int) { return s.k, s.c, s.mod }

// Apply returns S(x).
func (s *Substitution) Apply(x int) int { return s.forward[Reduce(x, s.mod)] }

// ApplyInverse returns S⁻¹(y) = k⁻¹(y - c) mod MOD.
func (s *Substitution) ApplyInverse(y int) int { return s.inverse[Reduce(y, s.mod)] }

// ApplyBlock applies S element-wise.
func (s *Substitution) ApplyBlock(b Block) Block {
	out := make(Block, len(b))
	for i, x := range b {
		out[i] = s.Apply(x)
	}
	return out
}

// InverseBlock applies S⁻¹ element-wise.
func (s *Substitution) InverseBlock(b Block) Block {
	out := make(Block, len(b))
	for i, y := range b {
		out[i] = s.ApplyInverse(y)
	}
	return out
}

// Table returns a copy of the forward lookup table.
func (s *Substitution) Table() []int {
	out := make([]int, len(s.forward))
	copy(out, s.forward)
	return out
}

// InverseTable returns a copy of the inverse lookup table.
func (s *Substitution) InverseTable() []int {
	out := make([]int, len(s.inverse))
	copy(out, s.inverse)
	return out
}
