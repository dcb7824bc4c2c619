package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxSlugLength = 50

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeSlug trims whitespace, lowercases the value, and ensures it matches
// the URL-safe pattern used for public club addresses.
func NormalizeSlug(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("slug is required")
	}

	normalized := strings.ToLower(trimmed)
	if len(normalized) > maxSlugLength {
		return "", fmt.Errorf("invalid slug %q: must be at most %d characters", input, maxSlugLength)
	}
	if !slugPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid slug %q: must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", input)
	}

	return normalized, nil
}

// SlugFromName derives a slug from a club display name, e.g.
// "ACM Student Chapter" becomes "acm-student-chapter". The result may be
// empty when the name has no ASCII letters or digits.
func SlugFromName(name string) string {
	slug := strings.Trim(slugSeparator.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}
