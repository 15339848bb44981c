package hill

import (
	"fmt"
	"strings"
	"unicode"
)

// LatinSymbols is the reference 26-letter alphabet, A=0 through Z=25.
const LatinSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultFiller pads the final block of a message.
const DefaultFiller = 'X'

// Block is an ordered tuple of alphabet codes, each in [0, MOD).
type Block []int

// Clone returns a copy of b that does not share storage.
func (b Block) Clone() Block {
	if b == nil {
		return nil
	}
	out := make(Block, len(b))
	copy(out, b)
	return out
}

// Alphabet is an ordered symbol set with a bijective integer coding.
type Alphabet struct {
	symbols []rune
	codes   map[rune]int
	filler  rune
}

// NewAlphabet builds an alphabet from symbols in code order. Symbols are
// stored upper-cased; the filler must be one of them.
func NewAlphabet(symbols string, filler rune) (*Alphabet, error) {
	runes := []rune(strings.ToUpper(symbols))
	if len(runes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 symbols, got %d", ErrInvalidAlphabet, len(runes))
	}
	codes := make(map[rune]int, len(runes))
	for i, r := range runes {
		if unicode.IsSpace(r) {
			return nil, fmt.Errorf("%w: whitespace symbol at position %d", ErrInvalidAlphabet, i)
		}
		if _, dup := codes[r]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrInvalidAlphabet, r)
		}
		codes[r] = i
	}
	filler = unicode.ToUpper(filler)
	if _, ok := codes[filler]; !ok {
		return nil, fmt.Errorf("%w: filler %q is not in the alphabet", ErrInvalidAlphabet, filler)
	}
	return &Alphabet{symbols: runes, codes: codes, filler: filler}, nil
}

// LatinAlphabet returns the reference A..Z alphabet with filler X.
func LatinAlphabet() *Alphabet {
	a, err := NewAlphabet(LatinSymbols, DefaultFiller)
	if err != nil {
		panic(err)
	}
	return a
}

// Size returns MOD, the number of symbols.
func (a *Alphabet) Size() int { return len(a.symbols) }

// Filler returns the padding symbol.
func (a *Alphabet) Filler() rune { return a.filler }

// Symbols returns the alphabet in code order.
func (a *Alphabet) Symbols() string { return string(a.symbols) }

// Code returns the integer code of r after case folding.
func (a *Alphabet) Code(r rune) (int, bool) {
	c, ok := a.codes[unicode.ToUpper(r)]
	return c, ok
}

// Symbol returns the symbol for code, reducing it mod Size first.
func (a *Alphabet) Symbol(code int) rune {
	return a.symbols[Reduce(code, len(a.symbols))]
}

// Sanitize case-folds text and drops every character outside the alphabet.
func (a *Alphabet) Sanitize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		up := unicode.ToUpper(r)
		if _, ok := a.codes[up]; ok {
			sb.WriteRune(up)
		}
	}
	return sb.String()
}

// Pad sanitizes text and right-pads it with the filler to a multiple of blockSize.
func (a *Alphabet) Pad(text string, blockSize int) string {
	clean := []rune(a.Sanitize(text))
	if blockSize > 0 {
		for len(clean)%blockSize != 0 {
			clean = append(clean, a.filler)
		}
	}
	return string(clean)
}

// Encode converts text into blocks of blockSize codes and also returns the
// padded symbol string the blocks were built from. Input with no alphabet
// symbols yields no blocks.
func (a *Alphabet) Encode(text string, blockSize int) ([]Block, string) {
	padded := a.Pad(text, blockSize)
	runes := []rune(padded)
	if len(runes) == 0 || blockSize <= 0 {
		return nil, padded
	}
	blocks := make([]Block, 0, len(runes)/blockSize)
	for i := 0; i < len(runes); i += blockSize {
		block := make(Block, blockSize)
		for j := 0; j < blockSize; j++ {
			block[j] = a.codes[runes[i+j]]
		}
		blocks = append(blocks, block)
	}
	return blocks, padded
}

// Decode flattens blocks in order and maps each code to its symbol.
func (a *Alphabet) Decode(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		for _, code := range b {
			sb.WriteRune(a.Symbol(code))
		}
	}
	return sb.String()
}
