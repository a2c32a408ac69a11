package docmerge

import "os"

// GuidelinesEnvVar names the environment variable holding the URL of the
// operator-configured formatting guidelines document (a PDF).
const GuidelinesEnvVar = "MERGE_GUIDELINES_DOCUMENT_URL"

// guidelinesMediaType is the declared media type of the guidelines
// attachment. Guidelines are always distributed as PDF.
const guidelinesMediaType = "application/pdf"

// GuidelinesResolver resolves the process-wide guidelines document URL.
// The value is read-only and shared by all requests; absence is a
// deployment configuration error, not a per-request condition.
type GuidelinesResolver struct {
	url string
}

// NewGuidelinesResolver creates a resolver for a fixed URL.
// An empty URL is allowed at construction; Resolve reports the error so
// that every synthesis call re-checks the configuration.
func NewGuidelinesResolver(url string) *GuidelinesResolver {
	return &GuidelinesResolver{url: url}
}

// GuidelinesFromEnv creates a resolver from GuidelinesEnvVar.
func GuidelinesFromEnv() *GuidelinesResolver {
	return &GuidelinesResolver{url: os.Getenv(GuidelinesEnvVar)}
}

// Resolve returns the guidelines document URL.
// Returns ErrGuidelinesNotConfigured when the value is absent. Callers
// must invoke this before issuing any model request to avoid wasted
// invocations.
func (r *GuidelinesResolver) Resolve() (string, error) {
	if r.url == "" {
		return "", ErrGuidelinesNotConfigured
	}
	return r.url, nil
}
