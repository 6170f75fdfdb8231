package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var extractTagsTestCases = []struct {
	name     string
	input    string
	contains []string
	expected *string
}{
	{
		name:     "AllKinds",
		input:    "Case #urgent filed 2024-01-05, contact a@b.com, call +1-555-123-4567",
		contains: []string{"urgent", "2024-01-05", "a@b.com", "+1-555-123-4567"},
	},
	{
		name:     "Empty",
		input:    "",
		expected: stringPtr(""),
	},
	{
		name:     "NoTags",
		input:    "nothing to see here",
		expected: stringPtr(""),
	},
	{
		name:     "DuplicateHashtagsKept",
		input:    "#draft and again #draft",
		expected: stringPtr("draft draft"),
	},
	{
		name:     "HashtagsBeforeEmails",
		input:    "mail x@y.org about #hearing",
		expected: stringPtr("hearing x@y.org"),
	},
	{
		name:     "PhoneWithSpaces",
		input:    "ring (020) 7946 0958 today",
		contains: []string{"(020)79460958"},
	},
}

func stringPtr(s string) *string { return &s }

func TestExtractTags(t *testing.T) {
	for _, testCase := range extractTagsTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			tags := ExtractTags(testCase.input)

			if testCase.expected != nil {
				assert.Equal(*testCase.expected, tags)
			}
			tokens := strings.Fields(tags)
			for _, want := range testCase.contains {
				assert.Contains(tokens, want)
			}
		})
	}
}

func TestExtractTagsOrder(t *testing.T) {
	tags := strings.Fields(ExtractTags("call 555-123-4567 or a@b.com on 2024-01-05 #urgent"))
	require.Equal(t, []string{"urgent", "2024-01-05", "a@b.com"}, tags[:3])
	require.Contains(t, tags[3:], "555-123-4567")
}
