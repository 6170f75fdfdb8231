package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	excerptLength = 150
	excerptLead   = 50
	ellipsis      = "..."
)

// extractExcerpt returns a window of content around the earliest term, or
// its start when no term occurs.
func extractExcerpt(content string, terms []string) string {
	runes := []rune(content)

	at := firstTermOffset(content, terms)
	if at < 0 {
		if len(runes) <= excerptLength {
			return content
		}
		return string(runes[:excerptLength]) + ellipsis
	}

	start := max(0, at-excerptLead)
	end := min(len(runes), start+excerptLength)

	excerpt := string(runes[start:end])
	if start > 0 {
		excerpt = ellipsis + excerpt
	}
	if end < len(runes) {
		excerpt += ellipsis
	}
	return excerpt
}

// firstTermOffset is the rune offset of the earliest case-insensitive
// occurrence of any term, or -1.
func firstTermOffset(content string, terms []string) int {
	if len(terms) == 0 || content == "" {
		return -1
	}

	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	pattern, err := regexp.Compile("(?i)" + strings.Join(quoted, "|"))
	if err != nil {
		return -1
	}

	loc := pattern.FindStringIndex(content)
	if loc == nil {
		return -1
	}
	return utf8.RuneCountInString(content[:loc[0]])
}
