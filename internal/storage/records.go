package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedRecord is returned when a stored record cannot be decoded.
var ErrMalformedRecord = errors.New("malformed record")

// Bytes encodes as a JSON array of small integers, e.g. [12,0,255].
// Decoding also accepts a base64 string.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, ']')
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty byte field", ErrMalformedRecord)
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		*b = decoded
		return nil
	case '[':
		out, err := parseByteArray(data)
		if err != nil {
			return err
		}
		*b = out
		return nil
	default:
		return fmt.Errorf("%w: byte field must be an array or base64 string", ErrMalformedRecord)
	}
}

// parseByteArray scans "[1, 2, 3]" without an intermediate []interface{}.
func parseByteArray(data []byte) ([]byte, error) {
	if data[len(data)-1] != ']' {
		return nil, fmt.Errorf("%w: unterminated array", ErrMalformedRecord)
	}
	body := data[1 : len(data)-1]
	out := make([]byte, 0, len(body)/3+1)

	i := 0
	skipSpace := func() {
		for i < len(body) && (body[i] == ' ' || body[i] == '\n' || body[i] == '\r' || body[i] == '\t') {
			i++
		}
	}

	skipSpace()
	if i == len(body) {
		return out, nil
	}

	for {
		skipSpace()
		start := i
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
		}
		if start == i || i-start > 3 {
			return nil, fmt.Errorf("%w: invalid byte value at offset %d", ErrMalformedRecord, start)
		}
		v, err := strconv.ParseUint(string(body[start:i]), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: byte value out of range at offset %d", ErrMalformedRecord, start)
		}
		out = append(out, byte(v))

		skipSpace()
		if i == len(body) {
			return out, nil
		}
		if body[i] != ',' {
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedRecord, body[i], i)
		}
		i++
	}
}

// EncryptedBlob is the persisted form of one store's encrypted state.
type EncryptedBlob struct {
	IV     Bytes  `json:"iv"`
	Cipher Bytes  `json:"cipher"`
	Codec  string `json:"codec,omitempty"`
}

// EncodeBlob serializes blob for a BlobStore.
func EncodeBlob(blob EncryptedBlob) ([]byte, error) {
	if blob.IV == nil {
		blob.IV = Bytes{}
	}
	if blob.Cipher == nil {
		blob.Cipher = Bytes{}
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}
	return data, nil
}

// DecodeBlob parses a stored blob record.
func DecodeBlob(data []byte) (EncryptedBlob, error) {
	var blob EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			return EncryptedBlob{}, err
		}
		return EncryptedBlob{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(blob.IV) == 0 || blob.Cipher == nil {
		return EncryptedBlob{}, fmt.Errorf("%w: blob missing iv or cipher", ErrMalformedRecord)
	}
	return blob, nil
}

// EncodeSalt serializes a salt as a JSON array of integers.
func EncodeSalt(salt []byte) ([]byte, error) {
	return Bytes(salt).MarshalJSON()
}

// DecodeSalt parses a stored salt record and checks its length.
func DecodeSalt(data []byte, size int) ([]byte, error) {
	var salt Bytes
	if err := salt.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	if len(salt) != size {
		return nil, fmt.Errorf("%w: salt has %d bytes, expected %d", ErrMalformedRecord, len(salt), size)
	}
	return salt, nil
}
