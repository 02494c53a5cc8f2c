package crypto_test

import (
	"bytes"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/crypto"
)

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"", crypto.CodecNone, crypto.CodecZstd, crypto.CodecSnappy} {
		codec, err := crypto.CodecByName(name)
		require.NoError(t, err, name)
		if name == "" {
			assert.Equal(t, crypto.CodecNone, codec.Name())
		} else {
			assert.Equal(t, name, codec.Name())
		}
	}

	_, err := crypto.CodecByName("lz4")
	assert.ErrorIs(t, err, crypto.ErrUnknownCodec)
}

func TestCodecCompresses(t *testing.T) {
	// An empty SQLite page image is mostly zeros.
	page := make([]byte, 64*1024)
	copy(page, "SQLite format 3\x00")

	for _, name := range []string{crypto.CodecZstd, crypto.CodecSnappy} {
		t.Run(name, func(t *testing.T) {
			codec, err := crypto.CodecByName(name)
			require.NoError(t, err)

			enc, err := codec.Encode(page)
			require.NoError(t, err)
			assert.Less(t, len(enc), len(page)/4)

			dec, err := codec.Decode(enc)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(page, dec))
		})
	}
}

func TestNoneCodecIsIdentity(t *testing.T) {
	codec, err := crypto.CodecByName(crypto.CodecNone)
	require.NoError(t, err)

	data := []byte("unchanged")
	enc, err := codec.Encode(data)
	require.NoError(t, err)
	assert.Equal(t, data, enc)
}

func TestCodecRejectsGarbage(t *testing.T) {
	garbage := []byte("definitely not compressed")

	for _, name := range []string{crypto.CodecZstd, crypto.CodecSnappy} {
		codec, err := crypto.CodecByName(name)
		require.NoError(t, err)

		_, err = codec.Decode(garbage)
		assert.Error(t, err, name)
	}
}

func TestSnappyRejectsOversizedHeader(t *testing.T) {
	// A snappy block whose varint header claims 2 GiB of output.
	forged := []byte{0x80, 0x80, 0x80, 0x80, 0x08, 0x00}
	n, err := snappy.DecodedLen(forged)
	if err != nil {
		t.Skipf("snappy rejects forged header itself: %v", err)
	}
	require.Greater(t, n, crypto.MaxDecodedSize)

	codec, err := crypto.CodecByName(crypto.CodecSnappy)
	require.NoError(t, err)

	_, err = codec.Decode(forged)
	assert.ErrorIs(t, err, crypto.ErrPayloadTooLarge)
}
