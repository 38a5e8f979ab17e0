package capture

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/playground-engine/jobsystem/internal/storage"
	"github.com/playground-engine/jobsystem/pkg/compression"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/utils"
	"github.com/playground-engine/jobsystem/pkg/writer"
)

// Store saves and loads captures under a key prefix.
type Store struct {
	storage storage.Storage
	prefix  string
	codec   compression.Type
	logger  utils.Logger
}

// NewStore creates a Store. An empty prefix stores captures at the root.
func NewStore(st storage.Storage, prefix string, codec compression.Type, logger utils.Logger) *Store {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &Store{
		storage: st,
		prefix:  strings.Trim(prefix, "/"),
		codec:   codec,
		logger:  logger,
	}
}

// Key returns the object key for a session.
func (s *Store) Key(sessionID string) string {
	name := sessionID + ".json" + s.codec.Extension()
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save encodes c and uploads it. It returns the object key.
func (s *Store) Save(ctx context.Context, c *Capture) (string, error) {
	if c == nil || c.SessionID == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, "capture has no session id")
	}

	var buf bytes.Buffer
	if err := writer.NewCompressedJSONWriter[*Capture](s.codec).Write(c, &buf); err != nil {
		return "", err
	}

	key := s.Key(c.SessionID)
	size := buf.Len()
	if err := s.storage.Upload(ctx, key, &buf); err != nil {
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"session": c.SessionID,
		"events":  len(c.Events),
		"dropped": c.Dropped,
	}).Info("capture saved to %s (%d bytes, %s)", s.storage.GetURL(key), size, s.codec)
	return key, nil
}

// Load downloads and decodes the capture stored at key. The codec is
// detected from the content, so captures saved with any codec load.
func (s *Store) Load(ctx context.Context, key string) (*Capture, error) {
	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	c, err := writer.Read[*Capture](rc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "decode capture "+key, err)
	}
	if c == nil {
		return nil, apperrors.Newf(apperrors.CodeStorageError, "capture %s is empty", key)
	}
	return c, nil
}

// List returns the keys of every saved capture.
func (s *Store) List(ctx context.Context) ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if isCaptureKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func isCaptureKey(key string) bool {
	for _, ext := range []string{".json", ".json.gz", ".json.zst"} {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}
