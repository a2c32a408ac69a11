package docmerge

import (
	"context"
	"fmt"
	"time"
)

// Compile-time interface implementation checks.
var (
	_ htmlConverter = (*goldmarkConverter)(nil)
	_ cssInjector   = (*cssInjection)(nil)
)

// defaultTimeout is used when no timeout is specified.
const defaultTimeout = 60 * time.Second

// rendererConfig holds internal configuration for Renderer.
type rendererConfig struct {
	timeout time.Duration
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTimeout sets the PDF generation timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("docmerge: WithTimeout duration must be positive")
	}
	return func(r *Renderer) {
		r.cfg.timeout = d
	}
}

// Renderer converts synthesized Markdown into a paginated, print-styled
// PDF. Create with NewRenderer, render with Render, and Close when done.
// A Renderer owns one browser instance and must not be shared across
// concurrent renders; use RendererPool for that.
type Renderer struct {
	cfg           rendererConfig
	htmlConverter htmlConverter
	cssInjector   cssInjector
	pdfConverter  pdfConverter
}

// NewRenderer creates a Renderer with default configuration.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		cfg:           rendererConfig{timeout: defaultTimeout},
		htmlConverter: newGoldmarkConverter(),
		cssInjector:   &cssInjection{},
	}

	for _, opt := range opts {
		opt(r)
	}

	// Create PDF converter if not injected (e.g., by tests)
	if r.pdfConverter == nil {
		r.pdfConverter = newRodConverter(r.cfg.timeout)
	}

	return r
}

// Render runs the Markdown to PDF pipeline and returns the PDF bytes.
// The layout is deterministic: the same content always produces the same
// page structure for a fixed renderer version. A failed render returns
// no bytes - partial buffers are never surfaced.
func (r *Renderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	if markdown == "" {
		return nil, ErrEmptyMarkdown
	}

	htmlContent, err := r.htmlConverter.ToHTML(ctx, markdown)
	if err != nil {
		return nil, fmt.Errorf("converting to HTML: %w", err)
	}

	htmlContent = r.cssInjector.InjectCSS(ctx, htmlContent, printStyleSheet)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	pdfBytes, err := r.pdfConverter.ToPDF(ctx, htmlContent)
	if err != nil {
		return nil, fmt.Errorf("converting to PDF: %w", err)
	}

	return pdfBytes, nil
}

// Close releases resources (headless Chrome browser).
func (r *Renderer) Close() error {
	if r.pdfConverter != nil {
		return r.pdfConverter.Close()
	}
	return nil
}
