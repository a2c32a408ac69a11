// Package server provides the HTTP API for the document merge service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	docmerge "github.com/avela/go-docmerge"
	"github.com/avela/go-docmerge/internal/artifact"
	"github.com/avela/go-docmerge/internal/blob"
	"github.com/avela/go-docmerge/internal/config"
)

// Synthesizer produces merged or revised document content.
type Synthesizer interface {
	Create(ctx context.Context, req docmerge.MergeRequest, observers ...docmerge.DeltaObserver) (string, error)
	Update(ctx context.Context, current, description string, observers ...docmerge.DeltaObserver) (string, error)
}

// PDFRenderer converts Markdown content to PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, markdown string) ([]byte, error)
}

// Compile-time interface checks.
var _ Synthesizer = (*docmerge.Synthesizer)(nil)

// Server is the HTTP server for the merge API.
type Server struct {
	synth     Synthesizer
	renderer  PDFRenderer
	documents *artifact.Store
	blobs     *blob.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	synth Synthesizer,
	renderer PDFRenderer,
	documents *artifact.Store,
	blobs *blob.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		synth:     synth,
		renderer:  renderer,
		documents: documents,
		blobs:     blobs,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/files/upload", s.handleFileUpload)
	r.Post("/api/v1/merge", s.handleMerge)
	r.Post("/api/v1/merge/stream", s.handleMergeStream)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Post("/api/v1/documents/{id}", s.handleUpdateDocument)
	r.Get("/api/v1/documents/{id}/markdown", s.handleDocumentMarkdown)
	r.Post("/api/v1/pdf/generate", s.handleGeneratePDF)
	r.Post("/api/v1/pdf/upload", s.handleUploadPDF)
	r.Get("/health", s.handleHealth)

	// Serve stored blobs under their public URL prefix.
	fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(s.blobs.Dir())))
	r.Get("/files/*", fileServer.ServeHTTP)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
