package common

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression names reported in Input.Compression.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Input is a result file loaded fully into memory.
type Input struct {
	Path string
	// Data is the decompressed file content. DecodedSize keeps its length
	// after Data has been released.
	Data        []byte
	DecodedSize int64
	// StoredSize and Sha256 describe the file as it exists on disk.
	StoredSize  int64
	Sha256      string
	Compression string
}

// ReadInput loads path into memory. Files starting with a gzip or zstd magic
// number are decompressed transparently.
func ReadInput(path string) (Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Input{}, err
	}
	h := NewHasher()
	_, _ = h.Write(raw)
	in := Input{
		Path:        path,
		StoredSize:  int64(len(raw)),
		Sha256:      h.Sum(),
		Compression: DetectCompression(raw),
	}
	in.Data, err = Decompress(raw)
	if err != nil {
		return Input{}, fmt.Errorf("%s: %w", path, err)
	}
	in.DecodedSize = int64(len(in.Data))
	return in, nil
}

// DetectCompression sniffs the leading magic bytes of data.
func DetectCompression(data []byte) string {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Decompress returns data unchanged unless it is gzip or zstd compressed.
func Decompress(data []byte) ([]byte, error) {
	switch DetectCompression(data) {
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}
