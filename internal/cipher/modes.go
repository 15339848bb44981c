package cipher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/RowanDark/citadel/internal/hill"
)

// Operation names registered by NewDefaultRegistry.
const (
	OpHillEncrypt       = "hill_encrypt"
	OpHillDecrypt       = "hill_decrypt"
	OpCitadelEncrypt    = "citadel_encrypt"
	OpCitadelDecrypt    = "citadel_decrypt"
	OpAlphabetNormalize = "alphabet_normalize"
)

// ModeOp runs one direction of a cipher mode. Parameters:
//
//	key      BLOCK² integers, as a string "3 5 2 7" or a JSON array
//	iv       BLOCK integers, required for the citadel operations
//	workers  optional; >0 spreads hill blocks over that many goroutines
type ModeOp struct {
	BaseOperation
	engine    *hill.Engine
	mode      hill.Mode
	direction hill.Direction
}

func (op *ModeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	p, err := newParams(params)
	if err != nil {
		return nil, err
	}
	key, err := p.key(op.engine)
	if err != nil {
		return nil, err
	}
	var iv hill.Block
	if op.mode.Chained() {
		if iv, err = p.iv(op.engine); err != nil {
			return nil, err
		}
	}

	if workers := p.workers(); workers > 0 && op.mode == hill.ModeHill {
		return op.executeParallel(ctx, key, input, workers)
	}

	var res hill.Result
	if op.direction == hill.DirectionEncrypt {
		res, err = op.engine.Encrypt(op.mode, string(input), key, iv)
	} else {
		res, err = op.engine.Decrypt(op.mode, string(input), key, iv)
	}
	if err != nil {
		return nil, err
	}
	return []byte(res.Text), nil
}

func (op *ModeOp) executeParallel(ctx context.Context, key hill.Matrix, input []byte, workers int) ([]byte, error) {
	alphabet := op.engine.Alphabet()
	blocks, _ := alphabet.Encode(string(input), op.engine.BlockSize())
	var (
		out []hill.Block
		err error
	)
	if op.direction == hill.DirectionEncrypt {
		out, _, err = op.engine.EncryptECBParallel(ctx, key, blocks, workers)
	} else {
		out, _, err = op.engine.DecryptECBParallel(ctx, key, blocks, workers)
	}
	if err != nil {
		return nil, err
	}
	return []byte(alphabet.Decode(out)), nil
}

// NormalizeOp sanitizes and pads text without enciphering it.
type NormalizeOp struct {
	BaseOperation
	engine *hill.Engine
}

func (op *NormalizeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	return []byte(op.engine.Alphabet().Pad(string(input), op.engine.BlockSize())), nil
}

func modeOperations(engine *hill.Engine) []Operation {
	mode := func(name, reverse, desc string, m hill.Mode, d hill.Direction) Operation {
		t := OperationTypeEncrypt
		if d == hill.DirectionDecrypt {
			t = OperationTypeDecrypt
		}
		return &ModeOp{
			BaseOperation: BaseOperation{NameValue: name, TypeValue: t, DescriptionValue: desc, ReverseName: reverse},
			engine:        engine,
			mode:          m,
			direction:     d,
		}
	}
	return []Operation{
		mode(OpHillEncrypt, OpHillDecrypt, "Hill cipher, blocks enciphered independently (ECB)", hill.ModeHill, hill.DirectionEncrypt),
		mode(OpHillDecrypt, OpHillEncrypt, "Hill cipher decryption with the inverse key (ECB)", hill.ModeHill, hill.DirectionDecrypt),
		mode(OpCitadelEncrypt, OpCitadelDecrypt, "Chained Hill with affine substitution (CBC)", hill.ModeCitadel, hill.DirectionEncrypt),
		mode(OpCitadelDecrypt, OpCitadelEncrypt, "Chained Hill decryption with inverse substitution (CBC)", hill.ModeCitadel, hill.DirectionDecrypt),
		&NormalizeOp{
			BaseOperation: BaseOperation{
				NameValue:        OpAlphabetNormalize,
				TypeValue:        OperationTypeNormalize,
				DescriptionValue: "Upper-case, drop symbols outside the alphabet and pad with the filler",
			},
			engine: engine,
		},
	}
}

// params reads operation parameters through their JSON form so that values
// decoded from JSON, YAML or built in Go are handled alike.
type params struct {
	raw []byte
}

func newParams(in map[string]interface{}) (params, error) {
	if len(in) == 0 {
		return params{raw: []byte("{}")}, nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return params{}, fmt.Errorf("encode parameters: %w", err)
	}
	return params{raw: raw}, nil
}

func (p params) key(engine *hill.Engine) (hill.Matrix, error) {
	res := gjson.GetBytes(p.raw, "key")
	if !res.Exists() {
		return hill.Matrix{}, fmt.Errorf("%w: missing key parameter", hill.ErrInvalidKeyFormat)
	}
	if res.IsArray() {
		vals, err := intsFrom(res)
		if err != nil {
			return hill.Matrix{}, fmt.Errorf("%w: %v", hill.ErrInvalidKeyFormat, err)
		}
		return hill.ParseKey(vals, engine.BlockSize(), engine.Modulus())
	}
	return engine.ParseKey(res.String())
}

func (p params) iv(engine *hill.Engine) (hill.Block, error) {
	res := gjson.GetBytes(p.raw, "iv")
	if !res.Exists() {
		return nil, fmt.Errorf("%w: missing iv parameter", hill.ErrInvalidIVFormat)
	}
	if res.IsArray() {
		vals, err := intsFrom(res)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", hill.ErrInvalidIVFormat, err)
		}
		return engine.NewIV(vals)
	}
	return engine.ParseIV(res.String())
}

func (p params) workers() int {
	return int(gjson.GetBytes(p.raw, "workers").Int())
}

func intsFrom(res gjson.Result) ([]int, error) {
	items := res.Array()
	out := make([]int, len(items))
	for i, item := range items {
		if item.Type != gjson.Number || item.Num != float64(int64(item.Num)) {
			return nil, fmt.Errorf("element %d (%s) is not an integer", i, item.Raw)
		}
		out[i] = int(item.Int())
	}
	return out, nil
}
