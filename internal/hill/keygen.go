package hill

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const maxKeyAttempts = 10000

// GenerateKey draws random BLOCK×BLOCK matrices from r until one is
// invertible mod MOD. A nil reader uses crypto/rand.
func (e *Engine) GenerateKey(r io.Reader) (Matrix, error) {
	if r == nil {
		r = rand.Reader
	}
	n := e.blockSize * e.blockSize
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		flat, err := randomInts(r, n, e.Modulus())
		if err != nil {
			return Matrix{}, err
		}
		key, err := ParseKey(flat, e.blockSize, e.Modulus())
		if err != nil {
			return Matrix{}, err
		}
		if key.Invertible() {
			return key, nil
		}
	}
	return Matrix{}, errors.New("no invertible key found; check the random source")
}

// GenerateIV draws BLOCK random codes from r. A nil reader uses crypto/rand.
func (e *Engine) GenerateIV(r io.Reader) (Block, error) {
	if r == nil {
		r = rand.Reader
	}
	vals, err := randomInts(r, e.blockSize, e.Modulus())
	if err != nil {
		return nil, err
	}
	return Block(vals), nil
}

func randomInts(r io.Reader, n, mod int) ([]int, error) {
	limit := big.NewInt(int64(mod))
	out := make([]int, n)
	for i := range out {
		v, err := rand.Int(r, limit)
		if err != nil {
			return nil, fmt.Errorf("read random value: %w", err)
		}
		out[i] = int(v.Int64())
	}
	return out, nil
}
