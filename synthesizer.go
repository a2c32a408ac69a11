package docmerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// DeltaObserver receives each text delta as it arrives, before the final
// content is assembled. Delivery is best-effort: a failing or panicking
// observer never affects the accumulated content, which is reconstructed
// independently from the full delta sequence.
type DeltaObserver interface {
	OnDelta(text string)
}

// DeltaObserverFunc adapts a function to the DeltaObserver interface.
type DeltaObserverFunc func(text string)

func (f DeltaObserverFunc) OnDelta(text string) { f(text) }

// Synthesizer invokes the generative model with the guidelines document
// plus the uploaded sources and accumulates the streamed output.
type Synthesizer struct {
	gen        Generator
	guidelines *GuidelinesResolver
	logger     *zap.Logger
}

// NewSynthesizer creates a Synthesizer. A nil logger disables observer
// failure logging.
func NewSynthesizer(gen Generator, guidelines *GuidelinesResolver, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{gen: gen, guidelines: guidelines, logger: logger}
}

// Create merges the request's source documents into one new document and
// returns the fully accumulated content. The model request contains, in
// fixed order: the guidelines attachment, each source attachment in
// caller-supplied order, then the merge instruction.
//
// The request is validated and the guidelines configuration checked
// before any model call is issued.
func (s *Synthesizer) Create(ctx context.Context, req MergeRequest, observers ...DeltaObserver) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	guidelinesURL, err := s.guidelines.Resolve()
	if err != nil {
		return "", err
	}

	attachments := make([]Attachment, 0, len(req.Files)+1)
	attachments = append(attachments, Attachment{URL: guidelinesURL, MediaType: guidelinesMediaType})
	for _, f := range req.Files {
		attachments = append(attachments, Attachment{URL: f.URL, MediaType: f.ContentType})
	}

	return s.run(ctx, GenerateRequest{
		System:      mergeSystemDirective,
		Attachments: attachments,
		Instruction: mergeInstruction,
	}, observers)
}

// Update revises existing content according to a change instruction and
// returns the new content. The prior content is embedded in the
// instruction text; only the guidelines document is attached.
func (s *Synthesizer) Update(ctx context.Context, current, description string, observers ...DeltaObserver) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyInstruction
	}

	guidelinesURL, err := s.guidelines.Resolve()
	if err != nil {
		return "", err
	}

	return s.run(ctx, GenerateRequest{
		System:      updateSystemDirective,
		Attachments: []Attachment{{URL: guidelinesURL, MediaType: guidelinesMediaType}},
		Instruction: updateInstruction(description, current),
	}, observers)
}

// run drives the generator stream to completion. Deltas are concatenated
// in arrival order; none are reordered or dropped. The accumulated
// content is returned only after the stream signals completion - a
// stream error discards the accumulator entirely.
func (s *Synthesizer) run(ctx context.Context, req GenerateRequest, observers []DeltaObserver) (string, error) {
	stream, err := s.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			s.logger.Warn("closing delta stream", zap.Error(closeErr))
		}
	}()

	var content strings.Builder
	for {
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
		content.WriteString(delta)
		s.notify(observers, delta)
	}

	return content.String(), nil
}

// notify forwards one delta to every observer, isolating panics so a
// broken observer cannot abort the stream consumption.
func (s *Synthesizer) notify(observers []DeltaObserver, delta string) {
	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warn("delta observer panicked", zap.Any("panic", r))
				}
			}()
			obs.OnDelta(delta)
		}()
	}
}
