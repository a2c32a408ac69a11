// Package blob implements durable object storage on the local
// filesystem. Stored objects are publicly retrievable through the
// server's /files/ route; paths are timestamp-qualified with a random
// suffix so the same filename never collides.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publicPrefix is the URL path under which stored objects are served.
const publicPrefix = "/files/"

// Object describes one stored blob.
type Object struct {
	Path        string `json:"pathname"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store writes objects under a base directory and derives public URLs
// from a base URL.
type Store struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewStore creates a Store rooted at dir. baseURL is the externally
// visible origin (e.g. "http://localhost:8080") used to build object
// URLs.
func NewStore(dir, baseURL string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Dir returns the base directory, for mounting a file server.
func (s *Store) Dir() string {
	return s.dir
}

// Put stores the reader's bytes under prefix with a unique,
// timestamp-qualified name derived from filename, and returns the
// object's public URL and storage path.
func (s *Store) Put(ctx context.Context, prefix, filename string, r io.Reader, contentType string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), shortSuffix(), sanitizeName(filename))
	rel := path.Join(prefix, name)
	full := filepath.Join(s.dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, fmt.Errorf("creating blob prefix: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return nil, fmt.Errorf("creating blob: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(full)
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("closing blob: %w", err)
	}

	obj := &Object{
		Path:        rel,
		URL:         s.baseURL + publicPrefix + escapePath(rel),
		ContentType: contentType,
		Size:        size,
	}

	s.logger.Debug("blob stored",
		zap.String("path", obj.Path),
		zap.Int64("size", obj.Size),
		zap.String("contentType", contentType))

	return obj, nil
}

// sanitizeName reduces a user-supplied filename to a safe path segment.
func sanitizeName(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, " ", "-")
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "file"
	}
	return name
}

// escapePath percent-encodes each segment of a slash-separated path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// shortSuffix returns a short random suffix for uniqueness.
func shortSuffix() string {
	return uuid.NewString()[:8]
}
