package hill

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Engine runs the cipher modes for one alphabet, block size and S-box.
type Engine struct {
	alphabet  *Alphabet
	blockSize int
	sbox      *Substitution
}

// NewEngine validates that the components agree on MOD and returns an engine.
func NewEngine(alphabet *Alphabet, blockSize int, sbox *Substitution) (*Engine, error) {
	if alphabet == nil {
		return nil, fmt.Errorf("%w: nil alphabet", ErrInvalidAlphabet)
	}
	if sbox == nil {
		return nil, fmt.Errorf("%w: nil substitution", ErrInvalidSubstitution)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	if _, _, mod := sbox.Params(); mod != alphabet.Size() {
		return nil, fmt.Errorf("%w: substitution modulus %d does not match alphabet size %d", ErrInvalidSubstitution, mod, alphabet.Size())
	}
	return &Engine{alphabet: alphabet, blockSize: blockSize, sbox: sbox}, nil
}

var defaultEngine = sync.OnceValue(func() *Engine {
	alphabet := LatinAlphabet()
	sbox, err := NewSubstitution(DefaultSBoxMultiplier, DefaultSBoxOffset, alphabet.Size())
	if err != nil {
		panic(err)
	}
	engine, err := NewEngine(alphabet, 2, sbox)
	if err != nil {
		panic(err)
	}
	return engine
})

// DefaultEngine returns the reference engine: A..Z, BLOCK=2, S(x)=(7x+3) mod 26.
func DefaultEngine() *Engine { return defaultEngine() }

func (e *Engine) Alphabet() *Alphabet         { return e.alphabet }
func (e *Engine) BlockSize() int              { return e.blockSize }
func (e *Engine) Modulus() int                { return e.alphabet.Size() }
func (e *Engine) Substitution() *Substitution { return e.sbox }

// Encrypt sanitizes and pads text, then runs the selected mode. iv is ignored
// for ModeHill.
func (e *Engine) Encrypt(mode Mode, text string, key Matrix, iv Block) (Result, error) {
	blocks, padded := e.alphabet.Encode(text, e.blockSize)
	var (
		out   []Block
		trace Trace
		err   error
	)
	switch mode {
	case ModeHill:
		out, trace, err = e.EncryptECB(key, blocks)
	case ModeCitadel:
		out, trace, err = e.EncryptCBC(key, iv, blocks)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Text: e.alphabet.Decode(out), Padded: padded, Blocks: out, Trace: trace}, nil
}

// Decrypt sanitizes and pads ciphertext, then reverses the selected mode.
func (e *Engine) Decrypt(mode Mode, text string, key Matrix, iv Block) (Result, error) {
	blocks, padded := e.alphabet.Encode(text, e.blockSize)
	var (
		out   []Block
		trace Trace
		err   error
	)
	switch mode {
	case ModeHill:
		out, trace, err = e.DecryptECB(key, blocks)
	case ModeCitadel:
		out, trace, err = e.DecryptCBC(key, iv, blocks)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Text: e.alphabet.Decode(out), Padded: padded, Blocks: out, Trace: trace}, nil
}

// EncryptECB computes C_i = K·P_i for every block independently.
func (e *Engine) EncryptECB(key Matrix, blocks []Block) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	out := make([]Block, len(blocks))
	steps := make([]Step, len(blocks))
	for i, p := range blocks {
		out[i], steps[i] = ecbStep(key, i, p)
	}
	return out, e.newTrace(ModeHill, DirectionEncrypt, key, nil, nil, steps), nil
}

// DecryptECB computes P_i = K⁻¹·C_i. It fails with ErrKeyNotInvertible
// before touching any block when K has no inverse.
func (e *Engine) DecryptECB(key Matrix, blocks []Block) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	inv, err := key.Inverse()
	if err != nil {
		return nil, Trace{}, err
	}
	out := make([]Block, len(blocks))
	steps := make([]Step, len(blocks))
	for i, c := range blocks {
		out[i], steps[i] = ecbStep(inv, i, c)
	}
	return out, e.newTrace(ModeHill, DirectionDecrypt, key, &inv, nil, steps), nil
}

// EncryptECBParallel is EncryptECB with blocks spread over workers
// goroutines. Output and trace match the sequential pass exactly.
func (e *Engine) EncryptECBParallel(ctx context.Context, key Matrix, blocks []Block, workers int) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	out, steps, err := parallelECB(ctx, key, blocks, workers)
	if err != nil {
		return nil, Trace{}, err
	}
	return out, e.newTrace(ModeHill, DirectionEncrypt, key, nil, nil, steps), nil
}

// DecryptECBParallel is DecryptECB with blocks spread over workers goroutines.
func (e *Engine) DecryptECBParallel(ctx context.Context, key Matrix, blocks []Block, workers int) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	inv, err := key.Inverse()
	if err != nil {
		return nil, Trace{}, err
	}
	out, steps, err := parallelECB(ctx, inv, blocks, workers)
	if err != nil {
		return nil, Trace{}, err
	}
	return out, e.newTrace(ModeHill, DirectionDecrypt, key, &inv, nil, steps), nil
}

// EncryptCBC runs the chained construction. prev starts at iv and is
// replaced by each ciphertext block, so blocks are processed strictly in order.
func (e *Engine) EncryptCBC(key Matrix, iv Block, blocks []Block) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	iv, err := e.checkIV(iv)
	if err != nil {
		return nil, Trace{}, err
	}
	mod := e.Modulus()
	prev := iv.Clone()
	out := make([]Block, len(blocks))
	steps := make([]Step, len(blocks))
	for i, p := range blocks {
		combined := addBlocks(p, prev, mod)
		linear := key.Multiply(combined)
		c := e.sbox.ApplyBlock(linear)
		steps[i] = Step{
			Index:       i + 1,
			Input:       p.Clone(),
			Prev:        prev,
			Combined:    combined,
			Linear:      linear,
			Substituted: c,
			Output:      c.Clone(),
		}
		out[i] = c.Clone()
		prev = c.Clone()
	}
	return out, e.newTrace(ModeCitadel, DirectionEncrypt, key, nil, iv, steps), nil
}

// DecryptCBC reverses EncryptCBC. prev is updated to the received
// ciphertext block, never to an intermediate value.
func (e *Engine) DecryptCBC(key Matrix, iv Block, blocks []Block) ([]Block, Trace, error) {
	if err := e.checkInput(key, blocks); err != nil {
		return nil, Trace{}, err
	}
	iv, err := e.checkIV(iv)
	if err != nil {
		return nil, Trace{}, err
	}
	inv, err := key.Inverse()
	if err != nil {
		return nil, Trace{}, err
	}
	mod := e.Modulus()
	prev := iv.Clone()
	out := make([]Block, len(blocks))
	steps := make([]Step, len(blocks))
	for i, c := range blocks {
		invS := e.sbox.InverseBlock(c)
		linear := inv.Multiply(invS)
		p := subBlocks(linear, prev, mod)
		steps[i] = Step{
			Index:       i + 1,
			Input:       c.Clone(),
			Substituted: invS,
			Linear:      linear,
			Prev:        prev,
			Output:      p,
		}
		out[i] = p.Clone()
		prev = c.Clone()
	}
	return out, e.newTrace(ModeCitadel, DirectionDecrypt, key, &inv, iv, steps), nil
}

func (e *Engine) checkInput(key Matrix, blocks []Block) error {
	if key.Size() != e.blockSize {
		return fmt.Errorf("%w: key is %dx%d, engine block size is %d", ErrInvalidKeyFormat, key.Size(), key.Size(), e.blockSize)
	}
	if key.Modulus() != e.Modulus() {
		return fmt.Errorf("%w: key reduced mod %d, engine modulus is %d", ErrInvalidKeyFormat, key.Modulus(), e.Modulus())
	}
	for i, b := range blocks {
		if len(b) != e.blockSize {
			return fmt.Errorf("block %d has %d values, want %d", i+1, len(b), e.blockSize)
		}
	}
	return nil
}

// checkIV returns a copy of iv reduced into [0, MOD).
func (e *Engine) checkIV(iv Block) (Block, error) {
	if len(iv) != e.blockSize {
		return nil, fmt.Errorf("%w: expected %d integers, got %d", ErrInvalidIVFormat, e.blockSize, len(iv))
	}
	out := make(Block, len(iv))
	for i, v := range iv {
		out[i] = Reduce(v, e.Modulus())
	}
	return out, nil
}

func (e *Engine) newTrace(mode Mode, dir Direction, key Matrix, inv *Matrix, iv Block, steps []Step) Trace {
	t := Trace{Mode: mode, Direction: dir, Key: key.Rows(), IV: iv.Clone(), Steps: steps}
	if inv != nil {
		t.InverseKey = inv.Rows()
	}
	return t
}

func ecbStep(m Matrix, i int, in Block) (Block, Step) {
	res := m.Multiply(in)
	return res, Step{Index: i + 1, Input: in.Clone(), Linear: res.Clone(), Output: res.Clone()}
}

func parallelECB(ctx context.Context, m Matrix, blocks []Block, workers int) ([]Block, []Step, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(blocks) {
		workers = len(blocks)
	}
	out := make([]Block, len(blocks))
	steps := make([]Step, len(blocks))
	if len(blocks) == 0 {
		return out, steps, nil
	}

	// Each worker owns a contiguous range of indices, so writes never overlap.
	chunk := (len(blocks) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(blocks); start += chunk {
		end := min(start+chunk, len(blocks))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				out[i], steps[i] = ecbStep(m, i, blocks[i])
			}
		}(start, end)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return out, steps, nil
}

func addBlocks(a, b Block, mod int) Block {
	out := make(Block, len(a))
	for i := range a {
		out[i] = Reduce(a[i]+b[i], mod)
	}
	return out
}

func subBlocks(a, b Block, mod int) Block {
	out := make(Block, len(a))
	for i := range a {
		out[i] = Reduce(a[i]-b[i], mod)
	}
	return out
}
