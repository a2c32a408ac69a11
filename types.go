package docmerge

import (
	"fmt"
	"net/url"
)

// MaxSourceFiles caps the number of documents per merge request.
const MaxSourceFiles = 2

// titleLabel prefixes every generated document title. The identifier is
// appended to make titles unique while keeping them deterministic.
const titleLabel = "INFORME TÉCNICO-Evaluación de I+D conforme art. 35.1.a) LIS"

// SourceFile is a stable reference to an uploaded document.
// Produced by the upload endpoint; immutable once created.
type SourceFile struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Validate checks that the reference is complete and its URL is absolute.
func (f SourceFile) Validate() error {
	if f.Name == "" {
		return ErrEmptySourceName
	}
	u, err := url.Parse(f.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSourceURL, f.URL)
	}
	return nil
}

// MergeRequest carries the ordered source files for one merge operation.
type MergeRequest struct {
	Files []SourceFile `json:"files"`
}

// Validate rejects empty and oversized requests before any external call.
// Requests with more than MaxSourceFiles entries are rejected outright,
// never truncated.
func (r MergeRequest) Validate() error {
	if len(r.Files) == 0 {
		return ErrNoSourceFiles
	}
	if len(r.Files) > MaxSourceFiles {
		return fmt.Errorf("%w: got %d, maximum is %d", ErrTooManySourceFiles, len(r.Files), MaxSourceFiles)
	}
	for _, f := range r.Files {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MergeResult is the outcome of a completed merge operation.
type MergeResult struct {
	DocumentID  string       `json:"documentId"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	SourceFiles []SourceFile `json:"sourceFiles"`
}

// DocumentTitle derives the title for a generated document.
// Titles are deterministic: a fixed label plus the document identifier.
func DocumentTitle(id string) string {
	return titleLabel + " " + id
}
