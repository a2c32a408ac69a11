package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	docmerge "github.com/avela/go-docmerge"
	"github.com/avela/go-docmerge/internal/artifact"
)

// uploadFieldName is the multipart form field carrying the file.
const uploadFieldName = "file"

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Merge.MaxUploadBytes)
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !s.allowedContentType(contentType) {
		s.respondError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported content type: %s", contentType))
		return
	}

	obj, err := s.blobs.Put(r.Context(), "uploads", header.Filename, file, contentType)
	if err != nil {
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	s.logger.Debug("file uploaded", zap.String("pathname", obj.Path), zap.Int64("size", obj.Size))
	s.respondJSON(w, http.StatusCreated, obj)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req docmerge.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}

	id := uuid.NewString()
	title := docmerge.DocumentTitle(id)
	s.logger.Debug("merge request", zap.String("id", id), zap.Int("files", len(req.Files)))

	doc, err := s.documents.CreateDocument(r.Context(), id, title, artifact.KindMerge,
		func(ctx context.Context) (string, error) {
			return s.synth.Create(ctx, req)
		})
	if err != nil {
		s.logger.Error("merge failed", zap.String("id", id), zap.Error(err))
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusCreated, docmerge.MergeResult{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Content:     doc.Content,
		SourceFiles: req.Files,
	})
}

func (s *Server) handleMergeStream(w http.ResponseWriter, r *http.Request) {
	var req docmerge.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id := uuid.NewString()
	title := docmerge.DocumentTitle(id)
	s.logger.Debug("merge stream request", zap.String("id", id), zap.Int("files", len(req.Files)))

	// Delta events are transient notifications. A failed SSE write is
	// ignored so the persisted content never depends on the connection.
	observer := docmerge.DeltaObserverFunc(func(text string) {
		writeSSE(w, "text-delta", map[string]string{"text": text})
		flusher.Flush()
	})

	doc, err := s.documents.CreateDocument(r.Context(), id, title, artifact.KindMerge,
		func(ctx context.Context) (string, error) {
			return s.synth.Create(ctx, req, observer)
		})
	if err != nil {
		s.logger.Error("merge stream failed", zap.String("id", id), zap.Error(err))
		_, msg := errorResponse(err)
		writeSSE(w, "error", map[string]string{"error": msg})
		flusher.Flush()
		return
	}

	writeSSE(w, "finish", docmerge.MergeResult{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Content:     doc.Content,
		SourceFiles: req.Files,
	})
	flusher.Flush()
}

type updateRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.documents.GetDocument(id)
	if err != nil {
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}
	s.logger.Debug("update request", zap.String("id", id))

	doc, err := s.documents.UpdateDocument(r.Context(), id,
		func(ctx context.Context) (string, error) {
			return s.synth.Update(ctx, current.Content, req.Description)
		})
	if err != nil {
		s.logger.Error("update failed", zap.String("id", id), zap.Error(err))
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.documents.GetDocument(id)
	if err != nil {
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments()
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentMarkdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.documents.GetDocument(id)
	if err != nil {
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}

	// Exact stored bytes, no re-encoding or normalization.
	body := []byte(doc.Content)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", docmerge.ContentDisposition(docmerge.DefaultMarkdownFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type generatePDFRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

func (s *Server) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	var req generatePDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pdf, err := s.renderer.Render(r.Context(), req.Content)
	if err != nil {
		s.logger.Error("pdf generation failed", zap.Error(err))
		status, msg := errorResponse(err)
		s.respondError(w, status, msg)
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = docmerge.DefaultPDFFilename
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", docmerge.ContentDisposition(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

type uploadPDFRequest struct {
	PDFBase64 string `json:"pdfBase64"`
	Filename  string `json:"filename"`
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	var req uploadPDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.PDFBase64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid base64 payload")
		return
	}
	if len(data) == 0 {
		s.respondError(w, http.StatusBadRequest, "empty payload")
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = docmerge.DefaultPDFFilename
	}
	obj, err := s.blobs.Put(r.Context(), "merged-documents", filename, bytes.NewReader(data), "application/pdf")
	if err != nil {
		s.logger.Error("pdf upload failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, obj)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) allowedContentType(contentType string) bool {
	for _, allowed := range s.config.Merge.AllowedContentTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// writeSSE writes one server-sent event. Write errors are ignored: the
// client is gone and the pipeline outcome must not depend on it.
func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// Fixed client-facing messages for failures whose error chains carry
// internal detail (provider responses, launcher paths). The full error
// stays in the server log only.
const (
	msgSynthesisFailed = "failed to process documents"
	msgRenderFailed    = "failed to generate PDF"
	msgInternalError   = "internal server error"
)

// errorResponse maps a pipeline error to an HTTP status and a safe
// client message. Validation failures carry their own text; upstream
// and internal failures are reported generically.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, docmerge.ErrNoSourceFiles),
		errors.Is(err, docmerge.ErrTooManySourceFiles),
		errors.Is(err, docmerge.ErrInvalidSourceURL),
		errors.Is(err, docmerge.ErrEmptySourceName),
		errors.Is(err, docmerge.ErrEmptyInstruction),
		errors.Is(err, docmerge.ErrEmptyMarkdown),
		errors.Is(err, artifact.ErrEmptyID),
		errors.Is(err, artifact.ErrInvalidKind):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound, "document not found"
	case errors.Is(err, docmerge.ErrSynthesis):
		return http.StatusBadGateway, msgSynthesisFailed
	case errors.Is(err, docmerge.ErrHTMLConversion),
		errors.Is(err, docmerge.ErrPDFGeneration),
		errors.Is(err, docmerge.ErrBrowserConnect),
		errors.Is(err, docmerge.ErrPageCreate),
		errors.Is(err, docmerge.ErrPageLoad):
		return http.StatusInternalServerError, msgRenderFailed
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
