package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	docmerge "github.com/avela/go-docmerge"
	"github.com/avela/go-docmerge/internal/artifact"
	"github.com/avela/go-docmerge/internal/blob"
	"github.com/avela/go-docmerge/internal/config"
)

// mockSynthesizer implements Synthesizer with canned output.
type mockSynthesizer struct {
	content string
	deltas  []string
	err     error

	createCalls int
	updateCalls int
	lastCurrent string
	lastDesc    string
}

func (m *mockSynthesizer) Create(ctx context.Context, req docmerge.MergeRequest, observers ...docmerge.DeltaObserver) (string, error) {
	m.createCalls++
	if m.err != nil {
		return "", m.err
	}
	for _, d := range m.deltas {
		for _, obs := range observers {
			obs.OnDelta(d)
		}
	}
	return m.content, nil
}

func (m *mockSynthesizer) Update(ctx context.Context, current, description string, observers ...docmerge.DeltaObserver) (string, error) {
	m.updateCalls++
	m.lastCurrent = current
	m.lastDesc = description
	if m.err != nil {
		return "", m.err
	}
	return m.content, nil
}

// mockPDFRenderer implements PDFRenderer with canned bytes.
type mockPDFRenderer struct {
	output []byte
	err    error
}

func (m *mockPDFRenderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func newTestServer(t *testing.T, synth Synthesizer, renderer PDFRenderer) *Server {
	t.Helper()
	dir := t.TempDir()
	documents, err := artifact.Open(filepath.Join(dir, "docs.db"), nil)
	if err != nil {
		t.Fatalf("opening artifact store: %v", err)
	}
	t.Cleanup(func() { _ = documents.Close() })

	blobs, err := blob.NewStore(filepath.Join(dir, "blobs"), "http://localhost:8080", nil)
	if err != nil {
		t.Fatalf("opening blob store: %v", err)
	}

	cfg := config.Default()
	return NewServer(synth, renderer, documents, blobs, cfg, zap.NewNop())
}

func mergeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(docmerge.MergeRequest{Files: []docmerge.SourceFile{
		{URL: "https://example.com/a.pdf", Name: "a.pdf", ContentType: "application/pdf"},
		{URL: "https://example.com/b.pdf", Name: "b.pdf", ContentType: "application/pdf"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHandleMerge(t *testing.T) {
	synth := &mockSynthesizer{content: "# Merged"}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", mergeBody(t))
	w := doRequest(srv, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result docmerge.MergeResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.DocumentID == "" {
		t.Error("response missing document identifier")
	}
	if result.Content != "# Merged" {
		t.Errorf("content = %q", result.Content)
	}
	if !strings.Contains(result.Title, result.DocumentID) {
		t.Errorf("title %q must embed the document identifier", result.Title)
	}
	if len(result.SourceFiles) != 2 {
		t.Errorf("sourceFiles = %d, want 2", len(result.SourceFiles))
	}
	if synth.createCalls != 1 {
		t.Errorf("createCalls = %d", synth.createCalls)
	}
}

func TestHandleMergeValidation(t *testing.T) {
	synth := &mockSynthesizer{content: "x"}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "empty files", body: `{"files":[]}`, want: http.StatusBadRequest},
		{
			name: "too many files",
			body: `{"files":[{"url":"https://e.com/a","name":"a"},{"url":"https://e.com/b","name":"b"},{"url":"https://e.com/c","name":"c"}]}`,
			want: http.StatusBadRequest,
		},
		{name: "malformed body", body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", strings.NewReader(tt.body))
			w := doRequest(srv, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
	if synth.createCalls != 0 {
		t.Errorf("synthesizer must not run for invalid requests, got %d calls", synth.createCalls)
	}
}

func TestHandleMergeSynthesisFailure(t *testing.T) {
	synth := &mockSynthesizer{err: fmt.Errorf("%w: connection reset", docmerge.ErrSynthesis)}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", mergeBody(t))
	w := doRequest(srv, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	// A failed merge must leave nothing behind.
	docs, err := srv.documents.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("failed merge persisted %d documents", len(docs))
	}
}

func TestErrorResponsesHideUpstreamDetail(t *testing.T) {
	synthErr := fmt.Errorf("%w: anthropic error: invalid x-api-key sk-ant-0123", docmerge.ErrSynthesis)
	renderErr := fmt.Errorf("%w: exec /usr/bin/chromium: no such file", docmerge.ErrBrowserConnect)

	tests := []struct {
		name     string
		synth    *mockSynthesizer
		renderer *mockPDFRenderer
		method   string
		path     string
		body     func(t *testing.T) *bytes.Buffer
		want     string
	}{
		{
			name:     "merge",
			synth:    &mockSynthesizer{err: synthErr},
			renderer: &mockPDFRenderer{},
			path:     "/api/v1/merge",
			body:     mergeBody,
			want:     "failed to process documents",
		},
		{
			name:     "merge stream",
			synth:    &mockSynthesizer{err: synthErr},
			renderer: &mockPDFRenderer{},
			path:     "/api/v1/merge/stream",
			body:     mergeBody,
			want:     "failed to process documents",
		},
		{
			name:     "generate pdf",
			synth:    &mockSynthesizer{},
			renderer: &mockPDFRenderer{err: renderErr},
			path:     "/api/v1/pdf/generate",
			body: func(*testing.T) *bytes.Buffer {
				return bytes.NewBufferString(`{"content":"# x"}`)
			},
			want: "failed to generate PDF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.synth, tt.renderer)

			req := httptest.NewRequest(http.MethodPost, tt.path, tt.body(t))
			w := doRequest(srv, req)

			body := w.Body.String()
			for _, leak := range []string{"anthropic", "x-api-key", "sk-ant", "/usr/bin"} {
				if strings.Contains(body, leak) {
					t.Errorf("response body leaks %q: %s", leak, body)
				}
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("body = %q, want message %q", body, tt.want)
			}
		})
	}
}

func TestHandleMergeStream(t *testing.T) {
	synth := &mockSynthesizer{content: "Hola mundo", deltas: []string{"Hola ", "mundo"}}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge/stream", mergeBody(t))
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	body := w.Body.String()
	firstDelta := strings.Index(body, "event: text-delta")
	finish := strings.Index(body, "event: finish")
	if firstDelta == -1 || finish == -1 {
		t.Fatalf("missing events in stream:\n%s", body)
	}
	if firstDelta > finish {
		t.Error("deltas must precede the finish event")
	}
	if !strings.Contains(body, `"text":"Hola "`) {
		t.Errorf("first delta missing:\n%s", body)
	}
	if !strings.Contains(body, `"content":"Hola mundo"`) {
		t.Errorf("finish event must carry the persisted content:\n%s", body)
	}
}

func TestHandleMergeStreamError(t *testing.T) {
	synth := &mockSynthesizer{err: fmt.Errorf("%w: overloaded", docmerge.ErrSynthesis)}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge/stream", mergeBody(t))
	w := doRequest(srv, req)

	// Headers are already sent; the failure travels as an SSE event.
	if !strings.Contains(w.Body.String(), "event: error") {
		t.Errorf("missing error event:\n%s", w.Body.String())
	}
}

func TestHandleUpdateDocument(t *testing.T) {
	synth := &mockSynthesizer{content: "# v2"}
	srv := newTestServer(t, synth, &mockPDFRenderer{})

	doc, err := srv.documents.CreateDocument(context.Background(), "doc-1", "t", artifact.KindMerge,
		func(context.Context) (string, error) { return "# v1", nil })
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID,
		strings.NewReader(`{"description":"make it shorter"}`))
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if synth.lastCurrent != "# v1" {
		t.Errorf("update must receive the current content, got %q", synth.lastCurrent)
	}
	if synth.lastDesc != "make it shorter" {
		t.Errorf("lastDesc = %q", synth.lastDesc)
	}

	var updated artifact.Document
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Content != "# v2" {
		t.Errorf("content = %q", updated.Content)
	}
	if len(updated.Versions) != 2 {
		t.Errorf("versions = %d, want 2", len(updated.Versions))
	}
}

func TestHandleUpdateDocumentNotFound(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{content: "x"}, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/no-such",
		strings.NewReader(`{"description":"x"}`))
	w := doRequest(srv, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleGetDocument(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	_, err := srv.documents.CreateDocument(context.Background(), "doc-1", "Title", artifact.KindMerge,
		func(context.Context) (string, error) { return "# content", nil })
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleDocumentMarkdownRoundTrip(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	const content = "# Título\n\ncontenido exacto\r\ncon CRLF\n"
	_, err := srv.documents.CreateDocument(context.Background(), "doc-1", "t", artifact.KindMerge,
		func(context.Context) (string, error) { return content, nil })
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1/markdown", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != content {
		t.Errorf("body = %q, want the exact stored bytes %q", got, content)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/markdown") {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment;") {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestHandleGeneratePDF(t *testing.T) {
	pdf := []byte("%PDF-1.4 generated")
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{output: pdf})

	body := `{"content":"# Hello","filename":"informe-técnico.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/generate", strings.NewReader(body))
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "informe-t%C3%A9cnico.pdf") {
		t.Errorf("Content-Disposition = %q, want RFC 5987 encoded filename", got)
	}
	if got := w.Header().Get("Content-Length"); got != fmt.Sprint(len(pdf)) {
		t.Errorf("Content-Length = %q, want %d", got, len(pdf))
	}
	if !bytes.Equal(w.Body.Bytes(), pdf) {
		t.Error("body must be the exact PDF bytes")
	}
}

func TestHandleGeneratePDFDefaultFilename(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{output: []byte("%PDF-1.4")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/generate", strings.NewReader(`{"content":"# Hello"}`))
	w := doRequest(srv, req)

	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, docmerge.DefaultPDFFilename) {
		t.Errorf("Content-Disposition = %q, want default filename", got)
	}
}

func TestHandleGeneratePDFEmptyContent(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{err: docmerge.ErrEmptyMarkdown})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/generate", strings.NewReader(`{"content":""}`))
	w := doRequest(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleGeneratePDFRenderFailure(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{err: errors.New("browser crashed")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/generate", strings.NewReader(`{"content":"# x"}`))
	w := doRequest(srv, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Header().Get("Content-Type") == "application/pdf" {
		t.Error("failed render must not claim to deliver a PDF")
	}
}

func TestHandleUploadPDF(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 stored"))
	body := fmt.Sprintf(`{"pdfBase64":%q,"filename":"report.pdf"}`, payload)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/upload", strings.NewReader(body))
	w := doRequest(srv, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var obj blob.Object
	if err := json.Unmarshal(w.Body.Bytes(), &obj); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(obj.Path, "merged-documents/") {
		t.Errorf("pathname = %q", obj.Path)
	}
	if !strings.HasSuffix(obj.Path, "-report.pdf") {
		t.Errorf("pathname = %q, want original name suffix", obj.Path)
	}
}

func TestHandleUploadPDFInvalidBase64(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/upload",
		strings.NewReader(`{"pdfBase64":"not base64!!","filename":"x.pdf"}`))
	w := doRequest(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleFileUpload(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="source.pdf"`},
		"Content-Type":        {"application/pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(part, "%PDF-1.4 upload")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := doRequest(srv, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var obj blob.Object
	if err := json.Unmarshal(w.Body.Bytes(), &obj); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(obj.Path, "uploads/") {
		t.Errorf("pathname = %q", obj.Path)
	}
	if obj.ContentType != "application/pdf" {
		t.Errorf("contentType = %q", obj.ContentType)
	}

	// The stored blob is immediately retrievable through /files/.
	rel := strings.TrimPrefix(obj.URL, "http://localhost:8080")
	get := doRequest(srv, httptest.NewRequest(http.MethodGet, rel, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", rel, get.Code)
	}
	if get.Body.String() != "%PDF-1.4 upload" {
		t.Error("served blob must match the uploaded bytes")
	}
}

func TestHandleFileUploadRejectsContentType(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="notes.txt"`},
		"Content-Type":        {"text/plain"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(part, "plain text")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := doRequest(srv, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnsupportedMediaType)
	}
}

func TestHandleFileUploadMissingField(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := doRequest(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockSynthesizer{}, &mockPDFRenderer{})

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
