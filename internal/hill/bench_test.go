package hill

import (
	"context"
	"strings"
	"testing"
)

func benchInput(b *testing.B, e *Engine) (Matrix, Block, []Block) {
	b.Helper()
	key, err := e.ParseKey("5 8 17 3")
	if err != nil {
		b.Fatal(err)
	}
	iv, err := e.NewIV([]int{1, 21})
	if err != nil {
		b.Fatal(err)
	}
	blocks, _ := e.Alphabet().Encode(strings.Repeat("THEQUICKBROWNFOXJUMPSOVERTHELAZYDOG", 512), e.BlockSize())
	return key, iv, blocks
}

func BenchmarkEncryptECB(b *testing.B) {
	e := DefaultEngine()
	key, _, blocks := benchInput(b, e)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.EncryptECB(key, blocks); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncryptECBParallel(b *testing.B) {
	e := DefaultEngine()
	key, _, blocks := benchInput(b, e)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.EncryptECBParallel(ctx, key, blocks, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncryptCBC(b *testing.B) {
	e := DefaultEngine()
	key, iv, blocks := benchInput(b, e)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.EncryptCBC(key, iv, blocks); err != nil {
			b.Fatal(err)
		}
	}
}
