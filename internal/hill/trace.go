package hill

import (
	"fmt"
	"strings"
)

// Mode selects one of the two block-cipher constructions.
type Mode string

const (
	// ModeHill is the classical linear cipher run block-by-block (ECB).
	ModeHill Mode = "hill"
	// ModeCitadel adds chaining feedback and the substitution layer (CBC).
	ModeCitadel Mode = "citadel"
)

// ParseMode resolves a mode name. Aliases ecb and cbc are accepted.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hill", "ecb", "ecb-linear":
		return ModeHill, nil
	case "citadel", "cbc", "cbc-linear-substituted":
		return ModeCitadel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Chained reports whether the mode carries state between blocks.
func (m Mode) Chained() bool { return m == ModeCitadel }

// Direction records whether a pass encrypted or decrypted.
type Direction string

const (
	DirectionEncrypt Direction = "encrypt"
	DirectionDecrypt Direction = "decrypt"
)

// Step captures every intermediate value computed for one block. Fields a
// mode does not compute are left nil.
//
// Encrypt: Input=P, Prev, Combined=P+Prev, Linear=K·Combined, Substituted=S(Linear), Output=C.
// Decrypt: Input=C, Substituted=S⁻¹(C), Linear=K⁻¹·Substituted, Prev, Output=Linear-Prev.
// Hill passes only fill Input, Linear and Output.
type Step struct {
	Index       int   `json:"index" yaml:"index" cbor:"index"`
	Input       Block `json:"input" yaml:"input" cbor:"input"`
	Prev        Block `json:"prev,omitempty" yaml:"prev,omitempty" cbor:"prev,omitempty"`
	Combined    Block `json:"combined,omitempty" yaml:"combined,omitempty" cbor:"combined,omitempty"`
	Linear      Block `json:"linear" yaml:"linear" cbor:"linear"`
	Substituted Block `json:"substituted,omitempty" yaml:"substituted,omitempty" cbor:"substituted,omitempty"`
	Output      Block `json:"output" yaml:"output" cbor:"output"`
}

// Trace is the ordered per-block record of one pass.
type Trace struct {
	Mode      Mode      `json:"mode" yaml:"mode" cbor:"mode"`
	Direction Direction `json:"direction" yaml:"direction" cbor:"direction"`
	Key       [][]int   `json:"key" yaml:"key" cbor:"key"`
	// InverseKey is only set for decryption passes.
	InverseKey [][]int `json:"inverse_key,omitempty" yaml:"inverse_key,omitempty" cbor:"inverse_key,omitempty"`
	IV         Block   `json:"iv,omitempty" yaml:"iv,omitempty" cbor:"iv,omitempty"`
	Steps      []Step  `json:"steps" yaml:"steps" cbor:"steps"`
}

// Result is the outcome of a text-level pass.
type Result struct {
	Text   string  `json:"text" yaml:"text" cbor:"text"`
	Padded string  `json:"padded" yaml:"padded" cbor:"padded"`
	Blocks []Block `json:"blocks" yaml:"blocks" cbor:"blocks"`
	Trace  Trace   `json:"trace" yaml:"trace" cbor:"trace"`
}
