package localmodel

import (
	"regexp"
	"strings"
)

var (
	urlRe          = regexp.MustCompile(`https?://\S+`)
	markdownHeadRe = regexp.MustCompile(`(?m)^#{1,6}\s.*$`)
	closeMenuRe    = regexp.MustCompile(`(?i)close menu`)
)

// RecoverRawOutput strips scrape noise (bare URLs, markdown headers, "Close
// menu" boilerplate) that leaks through when a local model echoes a raw
// fetched page instead of summarizing it.
func RecoverRawOutput(content string) string {
	content = urlRe.ReplaceAllString(content, "")
	content = markdownHeadRe.ReplaceAllString(content, "")
	content = closeMenuRe.ReplaceAllString(content, "")
	content = triplePlusNewlineRe.ReplaceAllString(content, "\n\n")
	content = doublePlusSpaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
