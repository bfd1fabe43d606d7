// Package htmlsanitize strips markup from caller-supplied text before it is
// stored. Descriptions, locations, and contact fields are plain text; safety
// resource bodies may keep basic formatting.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// Text removes all HTML from s and trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// Body sanitizes user-generated content, keeping basic formatting tags.
func Body(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}
