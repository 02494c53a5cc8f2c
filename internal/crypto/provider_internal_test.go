package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/casevault/internal/crypto/testdata"
)

// The published vectors use salts of other lengths than SaltSize, so they
// run against the unchecked derivation.
func TestPBKDF2_Vectors(t *testing.T) {
	for _, v := range testdata.KDFVectors {
		t.Run(v.Name, func(t *testing.T) {
			key := pbkdf2Key(v.Passphrase, []byte(v.Salt), v.Iterations)
			assert.Equal(t, v.Key, hex.EncodeToString(key))
		})
	}
}
