package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/TheMichaelB/casevault/internal/crypto"
)

var codecNames = []string{crypto.CodecNone, crypto.CodecZstd, crypto.CodecSnappy}

func genBytes(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.UInt8())
}

// TestCipherProperties checks round-trip and tamper detection over random payloads.
func TestCipherProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("open inverts seal", prop.ForAll(
		func(key, plaintext []byte) bool {
			sealed, err := crypto.Seal(key, plaintext)
			if err != nil {
				return false
			}
			got, err := crypto.Open(key, sealed.Nonce, sealed.Ciphertext)
			return err == nil && bytes.Equal(got, plaintext)
		},
		genBytes(crypto.KeySize),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("single bit flip is rejected", prop.ForAll(
		func(key, plaintext []byte, pos int, inNonce bool) bool {
			sealed, err := crypto.Seal(key, plaintext)
			if err != nil {
				return false
			}

			nonce := append([]byte(nil), sealed.Nonce...)
			ct := append([]byte(nil), sealed.Ciphertext...)
			target := ct
			if inNonce {
				target = nonce
			}
			bit := pos % (len(target) * 8)
			target[bit/8] ^= 1 << (bit % 8)

			got, err := crypto.Open(key, nonce, ct)
			return errors.Is(err, crypto.ErrAuthentication) && got == nil
		},
		genBytes(crypto.KeySize),
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1<<20),
		gen.Bool(),
	))

	properties.Property("codecs round-trip", prop.ForAll(
		func(idx int, data []byte) bool {
			codec, err := crypto.CodecByName(codecNames[idx])
			if err != nil {
				return false
			}
			enc, err := codec.Encode(data)
			if err != nil {
				return false
			}
			dec, err := codec.Decode(enc)
			return err == nil && bytes.Equal(dec, data)
		},
		gen.IntRange(0, len(codecNames)-1),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// TestKDFProperties checks that derivation is a deterministic function of both inputs.
func TestKDFProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	kdf := crypto.NewPBKDF2(16)

	properties.Property("same inputs give the same key", prop.ForAll(
		func(passphrase string, salt []byte) bool {
			a, errA := kdf.DeriveKey(passphrase, salt)
			b, errB := kdf.DeriveKey(passphrase, salt)
			return errA == nil && errB == nil && bytes.Equal(a, b) && len(a) == crypto.KeySize
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		genBytes(crypto.SaltSize),
	))

	properties.Property("changing the passphrase changes the key", prop.ForAll(
		func(passphrase string, salt []byte) bool {
			a, _ := kdf.DeriveKey(passphrase, salt)
			b, _ := kdf.DeriveKey(passphrase+"x", salt)
			return !bytes.Equal(a, b)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		genBytes(crypto.SaltSize),
	))

	properties.Property("changing the salt changes the key", prop.ForAll(
		func(passphrase string, salt []byte, idx int) bool {
			other := append([]byte(nil), salt...)
			other[idx%len(other)] ^= 0xff
			a, _ := kdf.DeriveKey(passphrase, salt)
			b, _ := kdf.DeriveKey(passphrase, other)
			return !bytes.Equal(a, b)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		genBytes(crypto.SaltSize),
		gen.IntRange(0, crypto.SaltSize-1),
	))

	properties.TestingRun(t)
}
