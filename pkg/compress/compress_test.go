package compress

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() []byte {
	return bytes.Repeat([]byte("PlayerState.Score=42;Location=(1,2,3);"), 64)
}

func lz4Block(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	return buf[:n]
}

func TestLZ4(t *testing.T) {
	data := sampleData()
	block := lz4Block(t, data)

	out, err := LZ4{}.Decompress(block, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = LZ4{}.Decompress(block, len(data)+10)
	assert.ErrorIs(t, err, ErrDecompress)

	_, err = LZ4{}.Decompress([]byte{0xff, 0xff, 0xff, 0x00, 0x01}, len(data))
	assert.ErrorIs(t, err, ErrDecompress)
}

func TestZstd(t *testing.T) {
	data := sampleData()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	frame := enc.EncodeAll(data, nil)
	require.NoError(t, enc.Close())

	z, err := NewZstd()
	require.NoError(t, err)
	defer z.Close()

	out, err := z.Decompress(frame, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = z.Decompress(frame, len(data)-1)
	assert.ErrorIs(t, err, ErrDecompress)

	_, err = z.Decompress([]byte("not a zstd frame"), 16)
	assert.ErrorIs(t, err, ErrDecompress)
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Decompress([]byte{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)

	_, err = Passthrough{}.Decompress([]byte{1, 2, 3}, 4)
	assert.ErrorIs(t, err, ErrDecompress)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"lz4", "zstd", "none", "LZ4"} {
		d, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, d.Name())
	}

	_, err := ByName("oodle")
	assert.Error(t, err)
}
