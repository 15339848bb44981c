// Package hill implements the Hill (ECB-Linear) and Citadel
// (CBC-Linear-Substituted) block ciphers over a small alphabet.
//
// # Overview
//
// The package is split into leaf components that compose into an Engine:
//   - Alphabet maps text to fixed-size blocks of integer codes and back
//   - Reduce and ModInverse implement arithmetic in the ring Z/MOD
//   - Matrix multiplies, and inverts square key matrices mod MOD
//   - Substitution is an affine S-box S(x) = (k*x + c) mod MOD
//   - Engine runs the ECB and CBC state machines and records a Trace
//
// # Quick Start
//
//	engine := hill.DefaultEngine()
//	key, _ := engine.ParseKey("3 5 2 7")
//	iv, _ := engine.ParseIV("1 21")
//
//	res, _ := engine.Encrypt(hill.ModeCitadel, "HELP", key, iv)
//	// res.Text == "GOXY"
//
// # Padding
//
// Input is right-padded with the alphabet's filler symbol up to a multiple of
// the block size. The padding is not removed on decryption: a trailing filler
// in the source text cannot be told apart from one added by Encode.
//
// # Thread Safety
//
// Engines, alphabets, matrices and substitution tables are immutable after
// construction and safe for concurrent use. ECB passes may be split across
// goroutines with EncryptECBParallel; CBC passes are always sequential.
//
// None of this is secure encryption. The constructions are pedagogical.
package hill
