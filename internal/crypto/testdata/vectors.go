package testdata

// KDFVector is a known PBKDF2-HMAC-SHA256 input/output pair (32-byte key).
type KDFVector struct {
	Name       string
	Passphrase string
	Salt       string
	Iterations int
	Key        string // Hex
}

// KDFVectors are the published PBKDF2-HMAC-SHA256 reference values.
var KDFVectors = []KDFVector{
	{
		Name:       "single iteration",
		Passphrase: "password",
		Salt:       "salt",
		Iterations: 1,
		Key:        "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b",
	},
	{
		Name:       "two iterations",
		Passphrase: "password",
		Salt:       "salt",
		Iterations: 2,
		Key:        "ae4d0c95af6b46d32d0adff928f06dd02a303f8ef3c251dfd6e2d85a95474c43",
	},
	{
		Name:       "4096 iterations",
		Passphrase: "password",
		Salt:       "salt",
		Iterations: 4096,
		Key:        "c5e478d59288c841aa530db6845c4c8d962893a001ce4e11a4963873aa98134a",
	},
	{
		Name:       "long inputs",
		Passphrase: "passwordPASSWORDpassword",
		Salt:       "saltSALTsaltSALTsaltSALTsaltSALTsalt",
		Iterations: 4096,
		Key:        "348c89dbcbd32b2f32d814b8116e84cf2b17347ebc1800181c4e2a1fb8dd53e1",
	},
}

// GCMVector is a known AES-256-GCM case with empty additional data.
type GCMVector struct {
	Name       string
	Key        string // Hex
	Nonce      string // Hex
	Plaintext  string // Hex
	Ciphertext string // Hex, ciphertext||tag
}

// GCMVectors come from the GCM specification test cases 13 and 14.
var GCMVectors = []GCMVector{
	{
		Name:       "empty plaintext",
		Key:        "0000000000000000000000000000000000000000000000000000000000000000",
		Nonce:      "000000000000000000000000",
		Plaintext:  "",
		Ciphertext: "530f8afbc74536b9a963b4f1c4cb738b",
	},
	{
		Name:       "one zero block",
		Key:        "0000000000000000000000000000000000000000000000000000000000000000",
		Nonce:      "000000000000000000000000",
		Plaintext:  "00000000000000000000000000000000",
		Ciphertext: "cea7403d4d606b6e074ec5d3baf39d18d0d1c8a799996bf0265b98b5d48ab919",
	},
}
