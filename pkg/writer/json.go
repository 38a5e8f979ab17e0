// Package writer encodes values as JSON, optionally compressed, and reads
// them back.
package writer

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/playground-engine/jobsystem/pkg/compression"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// JSONWriter writes values of type T as JSON.
type JSONWriter[T any] struct {
	Compression compression.Type
	Indent      string
}

// NewJSONWriter returns a compact uncompressed writer.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Compression: compression.TypeNone}
}

// NewPrettyJSONWriter returns an indented uncompressed writer.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Compression: compression.TypeNone, Indent: "  "}
}

// NewCompressedJSONWriter returns a compact writer using the given codec.
func NewCompressedJSONWriter[T any](t compression.Type) *JSONWriter[T] {
	return &JSONWriter[T]{Compression: t}
}

// Write encodes data to w. The compressed stream is flushed before returning.
func (jw *JSONWriter[T]) Write(data T, w io.Writer) error {
	cw, err := compression.NewWriter(jw.Compression, w)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cw)
	if jw.Indent != "" {
		enc.SetIndent("", jw.Indent)
	}
	if err := enc.Encode(data); err != nil {
		_ = cw.Close()
		return apperrors.Wrap(apperrors.CodeStorageError, "encode json", err)
	}
	if err := cw.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "flush compressed stream", err)
	}
	return nil
}

// WriteToFile writes data to path, creating parent directories as needed.
func (jw *JSONWriter[T]) WriteToFile(data T, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "create output directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "create output file", err)
	}
	if err := jw.Write(data, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a JSON value of type T from r, detecting the codec from the
// stream's leading bytes.
func Read[T any](r io.Reader) (T, error) {
	var out T
	br := bufio.NewReader(r)
	prefix, _ := br.Peek(4)

	cr, err := compression.NewReader(compression.Detect(prefix), br)
	if err != nil {
		return out, err
	}
	defer cr.Close()

	if err := json.NewDecoder(cr).Decode(&out); err != nil {
		return out, apperrors.Wrap(apperrors.CodeStorageError, "decode json", err)
	}
	return out, nil
}

// ReadFile decodes a JSON value of type T from path.
func ReadFile[T any](path string) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		if os.IsNotExist(err) {
			return zero, apperrors.Wrap(apperrors.CodeNotFound, path, err)
		}
		return zero, apperrors.Wrap(apperrors.CodeStorageError, "open "+path, err)
	}
	defer f.Close()
	return Read[T](f)
}
