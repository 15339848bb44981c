package hill

import (
	"fmt"
	"strings"
)

// Matrix is a square key matrix with entries in [0, mod).
type Matrix struct {
	size int
	mod  int
	data []int // row-major
}

// ParseKey builds a size×size matrix from size² row-major integers, reducing
// each entry mod mod.
func ParseKey(flat []int, size, mod int) (Matrix, error) {
	if size <= 0 {
		return Matrix{}, fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidKeyFormat, size)
	}
	if mod < 2 {
		return Matrix{}, fmt.Errorf("%w: modulus must be at least 2, got %d", ErrInvalidKeyFormat, mod)
	}
	if len(flat) != size*size {
		return Matrix{}, fmt.Errorf("%w: expected %d integers, got %d", ErrInvalidKeyFormat, size*size, len(flat))
	}
	data := make([]int, len(flat))
	for i, v := range flat {
		data[i] = Reduce(v, mod)
	}
	return Matrix{size: size, mod: mod, data: data}, nil
}

// Size returns BLOCK, the matrix dimension.
func (m Matrix) Size() int { return m.size }

// Modulus returns the ring modulus the matrix is reduced by.
func (m Matrix) Modulus() int { return m.mod }

// At returns the entry at row r, column c.
func (m Matrix) At(r, c int) int { return m.data[r*m.size+c] }

// Flat returns a copy of the entries in row-major order.
func (m Matrix) Flat() []int {
	out := make([]int, len(m.data))
	copy(out, m.data)
	return out
}

// Rows returns a copy of the entries as a slice of rows.
func (m Matrix) Rows() [][]int {
	rows := make([][]int, m.size)
	for r := range rows {
		rows[r] = make([]int, m.size)
		copy(rows[r], m.data[r*m.size:(r+1)*m.size])
	}
	return rows
}

// String renders the matrix as "[[a b] [c d]]".
func (m Matrix) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for r := 0; r < m.size; r++ {
		if r > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprint(m.data[r*m.size : (r+1)*m.size]))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Multiply returns m·v with each component reduced mod the matrix modulus.
func (m Matrix) Multiply(v Block) Block {
	out := make(Block, m.size)
	for r := 0; r < m.size; r++ {
		sum := 0
		row := m.data[r*m.size : (r+1)*m.size]
		for c, k := range row {
			sum += k * v[c]
		}
		out[r] = Reduce(sum, m.mod)
	}
	return out
}

// valid is false for the zero Matrix and anything not built by ParseKey.
func (m Matrix) valid() bool {
	return m.size > 0 && m.mod > 1 && len(m.data) == m.size*m.size
}

// Determinant returns det(m) reduced mod the matrix modulus, or 0 for an
// uninitialised matrix.
func (m Matrix) Determinant() int {
	if !m.valid() {
		return 0
	}
	return Reduce(determinant(m.data, m.size), m.mod)
}

// Adjugate returns the transpose of the cofactor matrix, reduced mod the
// matrix modulus. For 2×2 this is [[d, -b], [-c, a]].
func (m Matrix) Adjugate() Matrix {
	if !m.valid() {
		return Matrix{}
	}
	n := m.size
	adj := make([]int, n*n)
	switch n {
	case 1:
		adj[0] = 1
	case 2:
		a, b, c, d := m.data[0], m.data[1], m.data[2], m.data[3]
		adj[0], adj[1], adj[2], adj[3] = d, -b, -c, a
	default:
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				cof := determinant(minor(m.data, n, r, c), n-1)
				if (r+c)%2 == 1 {
					cof = -cof
				}
				adj[c*n+r] = cof
			}
		}
	}
	for i := range adj {
		adj[i] = Reduce(adj[i], m.mod)
	}
	return Matrix{size: n, mod: m.mod, data: adj}
}

// Invertible reports whether det(m) has an inverse mod the matrix modulus.
func (m Matrix) Invertible() bool {
	if !m.valid() {
		return false
	}
	_, ok := ModInverse(m.Determinant(), m.mod)
	return ok
}

// Inverse returns m⁻¹ mod the matrix modulus, or ErrKeyNotInvertible when
// gcd(det, mod) != 1.
func (m Matrix) Inverse() (Matrix, error) {
	if !m.valid() {
		return Matrix{}, fmt.Errorf("%w: matrix is not initialised", ErrInvalidKeyFormat)
	}
	det := m.Determinant()
	detInv, ok := ModInverse(det, m.mod)
	if !ok {
		return Matrix{}, fmt.Errorf("%w: determinant %d has no inverse mod %d", ErrKeyNotInvertible, det, m.mod)
	}
	adj := m.Adjugate()
	for i, v := range adj.data {
		adj.data[i] = Reduce(detInv*v, m.mod)
	}
	return adj, nil
}

func determinant(data []int, n int) int {
	switch n {
	case 0:
		return 1
	case 1:
		return data[0]
	case 2:
		return data[0]*data[3] - data[1]*data[2]
	}
	det := 0
	for c := 0; c < n; c++ {
		term := data[c] * determinant(minor(data, n, 0, c), n-1)
		if c%2 == 1 {
			det -= term
		} else {
			det += term
		}
	}
	return det
}

// minor drops row skipR and column skipC from an n×n row-major matrix.
func minor(data []int, n, skipR, skipC int) []int {
	out := make([]int, 0, (n-1)*(n-1))
	for r := 0; r < n; r++ {
		if r == skipR {
			continue
		}
		for c := 0; c < n; c++ {
			if c == skipC {
				continue
			}
			out = append(out, data[r*n+c])
		}
	}
	return out
}
