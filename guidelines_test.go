package docmerge

import (
	"errors"
	"testing"
)

func TestGuidelinesResolverResolve(t *testing.T) {
	r := NewGuidelinesResolver("https://example.com/guidelines.pdf")

	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "https://example.com/guidelines.pdf" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestGuidelinesResolverNotConfigured(t *testing.T) {
	r := NewGuidelinesResolver("")

	_, err := r.Resolve()
	if !errors.Is(err, ErrGuidelinesNotConfigured) {
		t.Fatalf("Resolve() error = %v, want ErrGuidelinesNotConfigured", err)
	}
}

func TestGuidelinesFromEnv(t *testing.T) {
	t.Setenv(GuidelinesEnvVar, "https://example.com/from-env.pdf")

	got, err := GuidelinesFromEnv().Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "https://example.com/from-env.pdf" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestGuidelinesFromEnvUnset(t *testing.T) {
	t.Setenv(GuidelinesEnvVar, "")

	_, err := GuidelinesFromEnv().Resolve()
	if !errors.Is(err, ErrGuidelinesNotConfigured) {
		t.Fatalf("Resolve() error = %v, want ErrGuidelinesNotConfigured", err)
	}
}
