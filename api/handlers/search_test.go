package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func searchHandlerTestCases(server *testServer) []testCase {
	return []testCase{
		{
			name:           "case found by title term",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "smith"},
			expectedStatus: http.StatusOK,
			expectedTotal:  1,
		},
		{
			name:           "case and note found by shared term",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "contract"},
			expectedStatus: http.StatusOK,
			expectedTotal:  2,
		},
		{
			name:           "entity type filter",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "contract", "filters": map[string]any{"entity_types": []string{"note"}}},
			expectedStatus: http.StatusOK,
			expectedTotal:  1,
		},
		{
			name:           "other user sees nothing",
			requestHeaders: headersFor(server.bob),
			requestBody:    map[string]any{"query": "contract"},
			expectedStatus: http.StatusOK,
			expectedTotal:  0,
		},
		{
			name:           "empty query lists everything",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": ""},
			expectedStatus: http.StatusOK,
			expectedTotal:  2,
		},
		{
			name:           "missing user header",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"query": "smith"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "limit is not a number",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "smith", "limit": "ten"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "limit above maximum",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "smith", "limit": 101},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "unknown sort field",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "smith", "sort_by": "size"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "unknown entity type",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": "smith", "filters": map[string]any{"entity_types": []string{"invoice"}}},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "inverted date range",
			requestHeaders: headersFor(server.alice),
			requestBody: map[string]any{"query": "smith", "filters": map[string]any{"date_range": map[string]any{
				"from": "2024-02-01T00:00:00Z",
				"to":   "2024-01-01T00:00:00Z",
			}}},
			expectedStatus: http.StatusNotAcceptable,
		},
	}
}

func TestHandleSearch(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range searchHandlerTestCases(server) {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/search", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))

			if testCase.expectedStatus != http.StatusOK {
				assertErrorResponse(assert, w)
				return
			}

			var searchResponse SearchResponse
			decodeData(assert, w, &searchResponse)
			assert.Equal(testCase.expectedTotal, searchResponse.Total)
			assert.Len(searchResponse.Results, testCase.expectedTotal)
			assert.False(searchResponse.HasMore)
			assert.NotNil(searchResponse.PageDetails)
			assert.Equal(testCase.expectedTotal, searchResponse.PageDetails.TotalResults)
		})
	}
}

func TestHandleSearchResultShape(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/search", headersFor(server.alice), map[string]any{
		"query":   "smith",
		"sort_by": "date",
	}, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	var searchResponse SearchResponse
	decodeData(assert, w, &searchResponse)
	assert.Len(searchResponse.Results, 1)

	result := searchResponse.Results[0]
	assert.Equal(server.caseID, result.ID)
	assert.Equal("case", result.Type)
	assert.Equal("Smith v Jones", result.Title)
	assert.NotNil(result.CaseID)
	assert.Equal(server.caseID, *result.CaseID)
	assert.Equal("2024-01-05T09:00:00Z", result.CreatedAt)
	assert.Greater(result.RelevanceScore, 0.0)
	assert.LessOrEqual(result.RelevanceScore, 100.0)
	assert.Equal("active", result.Metadata["status"])
}

func TestHandleSearchPagination(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/search", headersFor(server.alice), map[string]any{
		"query": "contract",
		"limit": 1,
	}, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	var searchResponse SearchResponse
	decodeData(assert, w, &searchResponse)
	assert.Equal(2, searchResponse.Total)
	assert.Len(searchResponse.Results, 1)
	assert.True(searchResponse.HasMore)
	assert.Equal(2, searchResponse.PageDetails.TotalPages)
	assert.True(searchResponse.PageDetails.HasNextPage)
}
