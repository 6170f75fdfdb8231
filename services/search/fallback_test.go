package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

var wordPrefixTestCases = []struct {
	name     string
	text     string
	term     string
	expected bool
}{
	{name: "StartOfText", text: "breach of contract", term: "brea", expected: true},
	{name: "AfterSpace", text: "breach of contract", term: "contr", expected: true},
	{name: "AfterPunctuation", text: "dated 2024-01-05", term: "01", expected: true},
	{name: "AfterNewline", text: "title\nclause 4", term: "clause", expected: true},
	{name: "MidWord", text: "breach of contract", term: "reach", expected: false},
	{name: "LaterOccurrenceStartsWord", text: "breach reached", term: "reach", expected: true},
	{name: "AfterUnderscore", text: "case_file", term: "file", expected: false},
	{name: "AfterMultibyteLetter", text: "éclair", term: "clair", expected: false},
	{name: "EmptyTerm", text: "anything", term: "", expected: false},
}

func TestHasWordPrefix(t *testing.T) {
	for _, tc := range wordPrefixTestCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, hasWordPrefix(tc.text, tc.term))
		})
	}
}

func TestFallbackIgnoresMidWordMatches(t *testing.T) {
	assert := require.New(t)
	c := setupCorpus(t)

	response, err := c.service(false).Search(context.Background(), c.owner, SearchQuery{Query: "reach"})
	assert.NoError(err)
	assert.Zero(response.Total)

	response, err = c.service(false).Search(context.Background(), c.owner, SearchQuery{Query: "brea"})
	assert.NoError(err)
	assert.Equal(3, response.Total)
}
