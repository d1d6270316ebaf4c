// Package validation holds format checks shared by data loaders.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSlugLength matches the size of groups.slug.
const MaxSlugLength = 50

var slugRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateGroupSlug checks that slug can be used as the /group/<slug>/ path segment.
func ValidateGroupSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("slug must be at most %d characters", MaxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("slug may contain only lowercase letters, numbers, underscores and hyphens")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("slug cannot start or end with a hyphen")
	}
	return nil
}
