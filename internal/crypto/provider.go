package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"

	"github.com/TheMichaelB/casevault/internal/config"
)

const (
	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	// SaltSize is the length of the shared key-derivation salt.
	SaltSize = 16

	// DefaultIterations is the PBKDF2-SHA256 work factor.
	DefaultIterations = config.DefaultIterations
)

// Errors
var (
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	ErrInvalidSalt     = errors.New("invalid salt")
	ErrInvalidKey      = errors.New("invalid key size")
	ErrInvalidNonce    = errors.New("invalid nonce size")
	ErrAuthentication  = errors.New("authentication failed: wrong passphrase or corrupted data")
	ErrUnknownCodec    = errors.New("unknown payload codec")
	ErrPayloadTooLarge = errors.New("decoded payload exceeds size limit")
)

// PBKDF2 derives keys with PBKDF2-HMAC-SHA256.
type PBKDF2 struct {
	iterations int
}

// NewPBKDF2 creates a PBKDF2 KDF. Non-positive iterations fall back to DefaultIterations.
func NewPBKDF2(iterations int) *PBKDF2 {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &PBKDF2{iterations: iterations}
}

// Iterations returns the configured work factor.
func (p *PBKDF2) Iterations() int {
	return p.iterations
}

// Algorithm implements KDF.
func (p *PBKDF2) Algorithm() string {
	return "pbkdf2"
}

// DeriveKey implements KDF.
func (p *PBKDF2) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if err := checkInputs(passphrase, salt); err != nil {
		return nil, err
	}
	return pbkdf2Key(passphrase, salt, p.iterations), nil
}

// pbkdf2Key is the raw derivation without input checks.
func pbkdf2Key(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}

// Argon2Params tunes argon2id.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// Argon2id derives keys with argon2id.
type Argon2id struct {
	params Argon2Params
}

// NewArgon2id creates an argon2id KDF.
func NewArgon2id(params Argon2Params) (*Argon2id, error) {
	if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("argon2id parameters must be positive: %+v", params)
	}
	return &Argon2id{params: params}, nil
}

// Algorithm implements KDF.
func (a *Argon2id) Algorithm() string {
	return "argon2id"
}

// DeriveKey implements KDF.
func (a *Argon2id) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if err := checkInputs(passphrase, salt); err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(passphrase), salt, a.params.Time, a.params.MemoryKiB, a.params.Threads, KeySize), nil
}

// normalized applies Unicode NFC before delegating, so visually identical
// passphrases typed on different keyboards derive the same key.
type normalized struct {
	KDF
}

// Normalized wraps kdf with NFC passphrase normalization.
func Normalized(kdf KDF) KDF {
	return normalized{KDF: kdf}
}

func (n normalized) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	return n.KDF.DeriveKey(norm.NFC.String(passphrase), salt)
}

// NewKDF builds the KDF selected by cfg.
func NewKDF(cfg config.KDFConfig) (KDF, error) {
	var kdf KDF

	switch cfg.Algorithm {
	case "", "pbkdf2":
		kdf = NewPBKDF2(cfg.Iterations)
	case "argon2id":
		a, err := NewArgon2id(Argon2Params{
			Time:      cfg.Argon2Time,
			MemoryKiB: cfg.Argon2MemoryKiB,
			Threads:   cfg.Argon2Threads,
		})
		if err != nil {
			return nil, err
		}
		kdf = a
	default:
		return nil, fmt.Errorf("unsupported kdf algorithm: %s", cfg.Algorithm)
	}

	if cfg.Normalize {
		kdf = Normalized(kdf)
	}
	return kdf, nil
}

func checkInputs(passphrase string, salt []byte) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	if len(salt) != SaltSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}
	return nil
}
