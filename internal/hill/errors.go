package hill

import "errors"

var (
	// ErrInvalidKeyFormat is returned when key text or a flat key does not hold
	// exactly BLOCK² integers.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrInvalidIVFormat is returned when IV text does not hold exactly BLOCK integers.
	ErrInvalidIVFormat = errors.New("invalid iv format")

	// ErrKeyNotInvertible is returned when decryption is requested with a key
	// whose determinant has no inverse mod MOD.
	ErrKeyNotInvertible = errors.New("key matrix not invertible")

	// ErrEmptyInput is returned by callers that require ciphertext to decrypt.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidAlphabet is returned when an alphabet cannot form a bijection.
	ErrInvalidAlphabet = errors.New("invalid alphabet")

	// ErrInvalidSubstitution is returned when the S-box multiplier is not a unit mod MOD.
	ErrInvalidSubstitution = errors.New("invalid substitution parameters")

	// ErrUnknownMode is returned by ParseMode for unrecognised mode names.
	ErrUnknownMode = errors.New("unknown cipher mode")
)
