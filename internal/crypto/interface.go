package crypto

// KDF turns a passphrase and salt into a symmetric key.
type KDF interface {
	// DeriveKey returns a KeySize-byte key. The same inputs always yield the same key.
	DeriveKey(passphrase string, salt []byte) ([]byte, error)

	// Algorithm names the derivation function, e.g. "pbkdf2".
	Algorithm() string
}

// Codec transforms a payload before encryption and after decryption.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}
