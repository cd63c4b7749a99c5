// Package naming provides the default model-name normalizer.
package naming

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	decamelizeRe = regexp.MustCompile(`([a-z\d])([A-Z])`)
	dasherizeRe  = regexp.MustCompile(`[ _]`)

	lower = cases.Lower(language.Und)
)

// Normalize maps a raw model name to its canonical, dasherized form:
// "BlogPost", "blogPost", "blog_post" and "blog post" all become "blog-post".
func Normalize(raw string) string {
	s := decamelizeRe.ReplaceAllString(raw, "${1}_${2}")
	s = lower.String(s)
	return dasherizeRe.ReplaceAllString(s, "-")
}
