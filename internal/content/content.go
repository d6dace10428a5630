// Package content holds the pure text derivations applied to blog posts:
// URL slugs, reading-time estimates, HTML sanitizing and tag normalisation.
//
// Nothing here touches the database or HTTP; the service layer calls these
// functions whenever a post's title, content or tags change.
package content

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// WordsPerMinute is the reading speed used by ReadingTime.
const WordsPerMinute = 200

var (
	// Any run of characters outside [a-z0-9] becomes one separator.
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)

	// stripPolicy removes every tag and keeps only text nodes.
	stripPolicy = bluemonday.StrictPolicy()

	// ugcPolicy is the allow-list for rich post bodies coming from the editor.
	ugcPolicy = newPostPolicy()
)

// Slug derives a URL-safe identifier from a post title.
//
// Rules:
//  1. Lowercase
//  2. Replace every maximal run of non-alphanumeric characters with "-"
//  3. Trim leading/trailing "-"
//
// Examples:
//
//	"Hello, World! 2024"   → "hello-world-2024"
//	"  C++ & Rust  "       → "c-rust"
//	"Café au lait"         → "caf-au-lait"
//	"!!!"                  → ""
func Slug(title string) string {
	s := strings.ToLower(title)
	s = nonAlphanumericRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// StripTags returns the text of an HTML fragment with all markup removed.
func StripTags(html string) string {
	return stripPolicy.Sanitize(html)
}

// WordCount counts whitespace-separated tokens after stripping markup.
func WordCount(html string) int {
	return len(strings.Fields(StripTags(html)))
}

// ReadingTime estimates minutes needed to read html at WordsPerMinute,
// rounded up. Empty content still reports one minute.
func ReadingTime(html string) int {
	words := WordCount(html)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Sanitize cleans editor HTML before it is stored. Formatting, links,
// images, headings, lists, tables and code blocks survive; scripts, event
// handlers and inline styles do not.
func Sanitize(html string) string {
	return ugcPolicy.Sanitize(html)
}

func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^(ql-[a-z0-9-]+\s*)+$`)).Globally()
	return p
}

// NormalizeTags trims each tag, drops empties and removes duplicates
// (case-insensitively, keeping the first spelling). Tags are an unordered
// set; the returned order is first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
