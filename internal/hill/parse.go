package hill

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseInts splits whitespace-separated text into integers.
func ParseInts(text string) ([]int, error) {
	fields := strings.Fields(text)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("token %q is not an integer", f)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseKey parses BLOCK² whitespace-separated integers in row-major order.
func (e *Engine) ParseKey(text string) (Matrix, error) {
	vals, err := ParseInts(text)
	if err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return ParseKey(vals, e.blockSize, e.Modulus())
}

// ParseIV parses BLOCK whitespace-separated integers, reducing each mod MOD.
func (e *Engine) ParseIV(text string) (Block, error) {
	vals, err := ParseInts(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIVFormat, err)
	}
	return e.NewIV(vals)
}

// NewIV validates and reduces an IV given as integers.
func (e *Engine) NewIV(vals []int) (Block, error) {
	if len(vals) != e.blockSize {
		return nil, fmt.Errorf("%w: expected %d integers, got %d", ErrInvalidIVFormat, e.blockSize, len(vals))
	}
	iv := make(Block, len(vals))
	for i, v := range vals {
		iv[i] = Reduce(v, e.Modulus())
	}
	return iv, nil
}

// FormatInts renders integers space-separated, the inverse of ParseInts.
func FormatInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
