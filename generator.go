package docmerge

import (
	"context"

	"github.com/avela/go-docmerge/internal/llm"
)

// Attachment is a file given to the model by reference.
type Attachment struct {
	URL       string
	MediaType string
}

// GenerateRequest is one multi-part model request: a system directive,
// ordered file attachments, and a trailing text instruction.
type GenerateRequest struct {
	System      string
	Attachments []Attachment
	Instruction string
}

// DeltaStream is a lazy, finite, non-restartable sequence of text deltas.
// Next returns io.EOF after the final delta; once consumed the stream
// cannot be replayed.
type DeltaStream interface {
	Next() (string, error)
	Close() error
}

// Generator produces a delta stream for a request. Implementations wrap
// an external text-generation provider; deterministic fakes keep the
// pipeline testable without one.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (DeltaStream, error)
}

// anthropicGenerator adapts the internal Anthropic client to Generator.
type anthropicGenerator struct {
	client *llm.Client
}

// NewAnthropicGenerator wraps an Anthropic Messages API client.
func NewAnthropicGenerator(client *llm.Client) Generator {
	return &anthropicGenerator{client: client}
}

// Generate issues one streaming model request. Attachment order is
// preserved; the instruction, when present, is the final content part.
func (g *anthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (DeltaStream, error) {
	parts := make([]llm.ContentPart, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, llm.DocumentPart(a.URL))
	}
	if req.Instruction != "" {
		parts = append(parts, llm.TextPart(req.Instruction))
	}
	return g.client.Stream(ctx, req.System, parts)
}
