package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const domainInfoPrefix = "casevault-store:"

// DomainKey derives a key bound to one store name from a passphrase key,
// so Core and Vault never encrypt under the same key material.
func DomainKey(key []byte, store string) ([]byte, error) {
	if err := ValidateKeySize(key); err != nil {
		return nil, err
	}
	if store == "" {
		return nil, fmt.Errorf("domain key: store name required")
	}

	out := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, key, nil, []byte(domainInfoPrefix+store))
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}
