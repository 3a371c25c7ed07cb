// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize cleans user-supplied text before it is stored.
// Club descriptions and announcements may carry basic formatting, so
// Sanitize runs them through a UGC policy. Chat bodies, names, and other
// single-line fields are plain text and go through Strip, which removes
// all markup.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		ugc = bluemonday.UGCPolicy()
		strict = bluemonday.StrictPolicy()
	})
	return ugc, strict
}

// Sanitize removes dangerous markup while preserving common formatting
// tags (paragraphs, emphasis, lists, links).
func Sanitize(s string) string {
	p, _ := policies()
	return p.Sanitize(s)
}

// Strip removes all HTML, unescapes entities, and trims surrounding
// whitespace. Used for plain-text fields such as chat message bodies.
func Strip(s string) string {
	_, p := policies()
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}
