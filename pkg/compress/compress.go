// Package compress provides the chunk decompressors used by the decoder.
package compress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrDecompress is returned for corrupt input or a length mismatch
var ErrDecompress = errors.New("decompression failed")

// Decompressor turns a compressed chunk into exactly expectedLen bytes
type Decompressor interface {
	Decompress(src []byte, expectedLen int) ([]byte, error)
	Name() string
}

// ByName returns the decompressor for "lz4", "zstd" or "none"
func ByName(name string) (Decompressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lz4":
		return LZ4{}, nil
	case "zstd":
		return NewZstd()
	case "none", "":
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func checkLength(codec string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s produced %d bytes, expected %d", ErrDecompress, codec, got, want)
	}
	return nil
}

// LZ4 decodes raw LZ4 blocks (no frame header)
type LZ4 struct{}

// Name implements Decompressor
func (LZ4) Name() string { return "lz4" }

// Decompress implements Decompressor
func (LZ4) Decompress(src []byte, expectedLen int) ([]byte, error) {
	if expectedLen < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrDecompress, expectedLen)
	}
	dst := make([]byte, expectedLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrDecompress, err)
	}
	if err := checkLength("lz4", n, expectedLen); err != nil {
		return nil, err
	}
	return dst, nil
}

// Zstd decodes zstd frames. The decoder is owned by the instance; an
// instance must not be shared between goroutines.
type Zstd struct {
	dec *zstd.Decoder
}

// NewZstd creates a single-threaded zstd decompressor
func NewZstd() (*Zstd, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Zstd{dec: dec}, nil
}

// Name implements Decompressor
func (*Zstd) Name() string { return "zstd" }

// Decompress implements Decompressor
func (z *Zstd) Decompress(src []byte, expectedLen int) ([]byte, error) {
	if expectedLen < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrDecompress, expectedLen)
	}
	out, err := z.dec.DecodeAll(src, make([]byte, 0, expectedLen))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
	}
	if err := checkLength("zstd", len(out), expectedLen); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the decoder
func (z *Zstd) Close() {
	z.dec.Close()
}

// Passthrough returns its input, for uncompressed replays
type Passthrough struct{}

// Name implements Decompressor
func (Passthrough) Name() string { return "none" }

// Decompress implements Decompressor
func (Passthrough) Decompress(src []byte, expectedLen int) ([]byte, error) {
	if err := checkLength("none", len(src), expectedLen); err != nil {
		return nil, err
	}
	return src, nil
}
