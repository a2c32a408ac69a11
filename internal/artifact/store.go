// Package artifact persists synthesized documents as ordered, immutable
// version snapshots. A document never mutates in place: every create or
// update appends a new version, and the current content is always the
// most recent version.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Document kinds. Merge documents always hold Markdown-flavored text.
const (
	KindText  = "text"
	KindImage = "image"
	KindMerge = "merge"
)

// Sentinel errors for store operations.
var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidKind = errors.New("invalid document kind")
	ErrEmptyID     = errors.New("document id cannot be empty")
)

var (
	bucketDocuments = []byte("documents")
	bucketVersions  = []byte("versions")
)

// documentMeta is the stored per-document record.
type documentMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// versionRecord is one immutable content snapshot.
type versionRecord struct {
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
}

// VersionInfo identifies one version of a document.
type VersionInfo struct {
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a stored document with its current content and the ordered
// list of its versions (oldest first).
type Document struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Kind      string        `json:"kind"`
	CreatedAt time.Time     `json:"createdAt"`
	Content   string        `json:"content"`
	Versions  []VersionInfo `json:"versions"`
}

// Producer generates the content for a new document version. It is
// driven to completion before anything is written: a failing producer
// persists nothing.
type Producer func(ctx context.Context) (string, error)

// Store is a bbolt-backed versioned document store.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// Open opens (or creates) the store at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocuments); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketVersions); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing artifact store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDocument drives the producer to completion and, on success,
// records the document with its first version. The producer's output is
// frozen at that point; later updates append versions, they never
// rewrite this one.
func (s *Store) CreateDocument(ctx context.Context, id, title, kind string, produce Producer) (*Document, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if !validKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	content, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := documentMeta{ID: id, Title: title, Kind: kind, CreatedAt: now}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := docs.Put([]byte(id), data); err != nil {
			return err
		}
		return appendVersion(tx, id, versionRecord{CreatedAt: now, Content: content})
	})
	if err != nil {
		return nil, fmt.Errorf("persisting document %s: %w", id, err)
	}

	s.logger.Debug("document created",
		zap.String("id", id),
		zap.String("kind", kind),
		zap.Int("contentBytes", len(content)))

	return s.GetDocument(id)
}

// UpdateDocument drives the producer to completion and appends the
// result as a new version of an existing document. The prior versions
// are untouched.
func (s *Store) UpdateDocument(ctx context.Context, id string, produce Producer) (*Document, error) {
	if _, err := s.GetDocument(id); err != nil {
		return nil, err
	}

	content, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return appendVersion(tx, id, versionRecord{CreatedAt: time.Now().UTC(), Content: content})
	})
	if err != nil {
		return nil, fmt.Errorf("persisting version of %s: %w", id, err)
	}

	s.logger.Debug("document updated", zap.String("id", id), zap.Int("contentBytes", len(content)))

	return s.GetDocument(id)
}

// GetDocument returns the document with its current (latest) content and
// ordered version list.
func (s *Store) GetDocument(id string) (*Document, error) {
	var doc Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var meta documentMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = Document{ID: meta.ID, Title: meta.Title, Kind: meta.Kind, CreatedAt: meta.CreatedAt}

		versions := tx.Bucket(bucketVersions).Bucket([]byte(id))
		if versions == nil {
			return nil
		}
		// Version keys sort chronologically, so a forward cursor walk
		// yields oldest-first order and the last record is current.
		c := versions.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec versionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			doc.Versions = append(doc.Versions, VersionInfo{CreatedAt: rec.CreatedAt})
			doc.Content = rec.Content
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns metadata for every stored document, without
// content or version lists.
func (s *Store) ListDocuments() ([]Document, error) {
	var docs []Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(_, v []byte) error {
			var meta documentMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, Document{ID: meta.ID, Title: meta.Title, Kind: meta.Kind, CreatedAt: meta.CreatedAt})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// appendVersion writes one version record under the document's version
// bucket, keyed by creation timestamp. Keys must be unique; a same-clock
// collision bumps the timestamp by a nanosecond.
func appendVersion(tx *bbolt.Tx, id string, rec versionRecord) error {
	bucket, err := tx.Bucket(bucketVersions).CreateBucketIfNotExists([]byte(id))
	if err != nil {
		return err
	}

	for bucket.Get(versionKey(rec.CreatedAt)) != nil {
		rec.CreatedAt = rec.CreatedAt.Add(time.Nanosecond)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return bucket.Put(versionKey(rec.CreatedAt), data)
}

// versionKey formats a timestamp as a lexicographically sortable key.
func versionKey(t time.Time) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

func validKind(kind string) bool {
	switch kind {
	case KindText, KindImage, KindMerge:
		return true
	}
	return false
}
