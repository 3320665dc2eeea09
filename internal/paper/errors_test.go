package paper

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"version not found", &VersionNotFoundError{Text: "Downloads"}, KindVersionNotFound},
		{"wrapped network", fmt.Errorf("fetching: %w", ErrNetwork), KindNetwork},
		{"timeout", fmt.Errorf("%w: %w", ErrNetwork, ErrRequestTimeout), KindNetwork},
		{"parse", fmt.Errorf("%w: no h2", ErrParse), KindParse},
		{"malformed", ErrMalformedResponse, KindMalformedResponse},
		{"invalid version", fmt.Errorf("%w: 9.9", ErrInvalidVersion), KindInvalidVersion},
		{"io", fmt.Errorf("saving: %w", ErrIO), KindIO},
		{"other", errors.New("boom"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindInvalidVersion.String() != "invalid_version" {
		t.Errorf("unexpected name %q", KindInvalidVersion.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unexpected name for unknown kind %q", Kind(99).String())
	}
}

func TestVersionNotFoundErrorMessage(t *testing.T) {
	err := &VersionNotFoundError{Text: "Downloads"}
	want := `no version number found in text: "Downloads"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
