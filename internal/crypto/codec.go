package crypto

import (
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Codec names as recorded in blob records.
const (
	CodecNone   = "none"
	CodecZstd   = "zstd"
	CodecSnappy = "snappy"
)

// MaxDecodedSize caps decompressed payloads (1 GiB).
const MaxDecodedSize = 1 << 30

// CodecByName returns the codec for name. An empty name means CodecNone.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecNone:
		return noneCodec{}, nil
	case CodecZstd:
		return zstdCodec{}, nil
	case CodecSnappy:
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

type noneCodec struct{}

func (noneCodec) Name() string                       { return CodecNone }
func (noneCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Decode(data []byte) ([]byte, error) { return data, nil }

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
	zstdErr     error
)

// initZstd builds the shared encoder and decoder once; both are safe for
// concurrent EncodeAll/DecodeAll.
func initZstd() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
		if zstdErr != nil {
			zstdEncoder.Close()
			zstdEncoder = nil
		}
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return CodecZstd }

func (zstdCodec) Encode(data []byte) ([]byte, error) {
	enc, _, err := initZstd()
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decode(data []byte) ([]byte, error) {
	_, dec, err := initZstd()
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	if len(out) > MaxDecodedSize {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return CodecSnappy }

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy header: %w", err)
	}
	if n > MaxDecodedSize {
		return nil, ErrPayloadTooLarge
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}
