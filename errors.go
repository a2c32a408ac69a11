package docmerge

import "errors"

// Sentinel errors for pipeline operations.
var (
	// Merge request validation errors.
	ErrNoSourceFiles      = errors.New("at least one source file is required")
	ErrTooManySourceFiles = errors.New("too many source files")
	ErrInvalidSourceURL   = errors.New("invalid source file URL")
	ErrEmptySourceName    = errors.New("source file name cannot be empty")

	// Configuration errors.
	ErrGuidelinesNotConfigured = errors.New("guidelines document URL is not configured")

	// Synthesis errors.
	ErrSynthesis        = errors.New("document synthesis failed")
	ErrEmptyInstruction = errors.New("change instruction cannot be empty")

	// Rendering errors.
	ErrEmptyMarkdown  = errors.New("markdown content cannot be empty")
	ErrHTMLConversion = errors.New("HTML conversion failed")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
)
