// Package compression wraps the stream codecs used for saved captures.
package compression

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Type names a codec.
type Type string

const (
	TypeNone Type = "none"
	TypeGzip Type = "gzip"
	TypeZstd Type = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ParseType accepts none, gzip/gz and zstd/zst. Empty means none.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	default:
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "unknown compression %q", s)
	}
}

// Extension returns the file suffix for the codec, including the dot.
func (t Type) Extension() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// Detect identifies the codec from the first bytes of a stream.
func Detect(prefix []byte) Type {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return TypeZstd
	case bytes.HasPrefix(prefix, gzipMagic):
		return TypeGzip
	default:
		return TypeNone
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w so that bytes written are compressed with t. Close must
// be called to flush; it does not close w.
func NewWriter(t Type, w io.Writer) (io.WriteCloser, error) {
	switch t {
	case TypeGzip:
		return gzip.NewWriter(w), nil
	case TypeZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageError, "create zstd encoder", err)
		}
		return enc, nil
	case TypeNone, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown compression %q", string(t))
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r to decompress a stream encoded with t.
func NewReader(t Type, r io.Reader) (io.ReadCloser, error) {
	switch t {
	case TypeGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageError, "open gzip stream", err)
		}
		return gz, nil
	case TypeZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageError, "open zstd stream", err)
		}
		return zstdReadCloser{dec}, nil
	case TypeNone, "":
		return io.NopCloser(r), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown compression %q", string(t))
	}
}
