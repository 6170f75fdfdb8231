package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var longText = strings.Repeat("a", 100) + " needle " + strings.Repeat("b", 200)

var excerptTestCases = []struct {
	name     string
	content  string
	terms    []string
	expected string
}{
	{
		name:     "ShortContentNoMatch",
		content:  "short text",
		terms:    []string{"zebra"},
		expected: "short text",
	},
	{
		name:     "LongContentNoMatch",
		content:  strings.Repeat("x", 200),
		terms:    []string{"zebra"},
		expected: strings.Repeat("x", 150) + "...",
	},
	{
		name:     "MatchNearStart",
		content:  "Breach of contract",
		terms:    []string{"contract"},
		expected: "Breach of contract",
	},
	{
		name:     "MatchInMiddle",
		content:  longText,
		terms:    []string{"needle"},
		expected: "..." + strings.Repeat("a", 49) + " needle " + strings.Repeat("b", 93) + "...",
	},
	{
		name:     "CaseInsensitive",
		content:  longText,
		terms:    []string{"NEEDLE"},
		expected: "..." + strings.Repeat("a", 49) + " needle " + strings.Repeat("b", 93) + "...",
	},
	{
		name:     "EarliestTermWins",
		content:  "alpha beta gamma",
		terms:    []string{"gamma", "beta"},
		expected: "alpha beta gamma",
	},
	{
		name:     "MultibyteRunes",
		content:  strings.Repeat("é", 60) + "needle",
		terms:    []string{"needle"},
		expected: "..." + strings.Repeat("é", 50) + "needle",
	},
	{
		name:     "NoTerms",
		content:  "anything",
		terms:    nil,
		expected: "anything",
	},
}

func TestExtractExcerpt(t *testing.T) {
	for _, tc := range excerptTestCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, extractExcerpt(tc.content, tc.terms))
		})
	}
}

func TestSplitTerms(t *testing.T) {
	require.Equal(t, []string{"breach", "of", "contract", "2024", "01", "05"}, splitTerms("  Breach OF contract, 2024-01-05!"))
	require.Empty(t, splitTerms("   "))
}
