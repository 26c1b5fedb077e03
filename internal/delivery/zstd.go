package delivery

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/loomq/loom/internal/payload"
)

// SuffixZstd is the auxiliary encoding suffix marking a zstd-compressed
// payload.
const SuffixZstd = "zstd"

// Shared stateless codecs; EncodeAll/DecodeAll on these are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(fmt.Sprintf("delivery: zstd encoder: %v", err))
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(fmt.Sprintf("delivery: zstd decoder: %v", err))
	}
}

// Compress returns a new payload holding the zstd-compressed content of b.
// b is not consumed.
func Compress(b *payload.Bytes) *payload.Bytes {
	return payload.Wrap(zstdEncoder.EncodeAll(b.Concat(), nil), nil)
}

// Decompress returns a new payload holding the decompressed content of b.
func Decompress(b *payload.Bytes) (*payload.Bytes, error) {
	out, err := zstdDecoder.DecodeAll(b.Concat(), nil)
	if err != nil {
		return nil, fmt.Errorf("delivery: zstd decompress: %w", err)
	}
	return payload.Wrap(out, nil), nil
}

// CompressSample replaces the sample's payload with its compressed form and
// tags the encoding with the zstd suffix. The original payload reference is
// released.
func CompressSample(s Sample) Sample {
	compressed := Compress(s.Payload)
	s.Payload.Release()
	s.Payload = compressed
	s.Encoding = s.Encoding.WithSuffix(SuffixZstd)
	return s
}

// DecompressSample undoes CompressSample when the encoding carries the zstd
// suffix; other samples pass through unchanged.
func DecompressSample(s Sample) (Sample, error) {
	if s.Encoding.Suffix() != SuffixZstd {
		return s, nil
	}
	plain, err := Decompress(s.Payload)
	if err != nil {
		return s, err
	}
	s.Payload.Release()
	s.Payload = plain
	s.Encoding = s.Encoding.WithSuffix("")
	return s, nil
}
