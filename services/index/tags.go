package index

import (
	"regexp"
	"strings"
)

var (
	hashtagRegex = regexp.MustCompile(`#(\w+)`)
	dateRegex    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	emailRegex   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRegex   = regexp.MustCompile(`\+?[\d(][\d\s()-]*\d{4}`)
)

// ExtractTags pulls hashtags (without '#'), ISO dates, email addresses and
// phone-like numbers out of text, in that order, space-joined. Duplicates are
// kept.
func ExtractTags(text string) string {
	if text == "" {
		return ""
	}

	var tags []string

	for _, match := range hashtagRegex.FindAllStringSubmatch(text, -1) {
		tags = append(tags, match[1])
	}
	tags = append(tags, dateRegex.FindAllString(text, -1)...)
	tags = append(tags, emailRegex.FindAllString(text, -1)...)

	for _, match := range phoneRegex.FindAllString(text, -1) {
		// tags are space-joined, inner whitespace would split one number
		if phone := strings.Join(strings.Fields(match), ""); phone != "" {
			tags = append(tags, phone)
		}
	}

	return strings.Join(tags, " ")
}
