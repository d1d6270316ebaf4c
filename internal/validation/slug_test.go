package validation

import (
	"strings"
	"testing"
)

func TestValidateGroupSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		slug string
		ok   bool
	}{
		{name: "simple", slug: "cats", ok: true},
		{name: "single character", slug: "a", ok: true},
		{name: "hyphen and digits", slug: "pc-gaming-2", ok: true},
		{name: "underscore", slug: "pc_gaming", ok: true},
		{name: "maximum length", slug: strings.Repeat("a", MaxSlugLength), ok: true},
		{name: "empty", slug: "", ok: false},
		{name: "too long", slug: strings.Repeat("a", MaxSlugLength+1), ok: false},
		{name: "uppercase", slug: "Cats", ok: false},
		{name: "space", slug: "pc gaming", ok: false},
		{name: "slash", slug: "a/b", ok: false},
		{name: "non ascii", slug: "кошки", ok: false},
		{name: "leading hyphen", slug: "-cats", ok: false},
		{name: "trailing hyphen", slug: "cats-", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGroupSlug(tc.slug)
			if tc.ok && err != nil {
				t.Fatalf("expected valid slug, got error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected invalid slug, got nil error")
			}
		})
	}
}
