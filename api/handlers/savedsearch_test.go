package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/meghashyamc/caseindex/services/savedsearch"
	"github.com/stretchr/testify/require"
)

func TestHandleSaveSearchValidation(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	testCases := []testCase{
		{
			name:           "valid search",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"name": "Contract work", "query": map[string]any{"query": "contract"}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"query": map[string]any{"query": "contract"}},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "blank name",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"name": "   ", "query": map[string]any{"query": "contract"}},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "invalid stored query",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"name": "Too many", "query": map[string]any{"query": "contract", "limit": 500}},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "query of the wrong type",
			requestHeaders: headersFor(server.alice),
			requestBody:    map[string]any{"name": "Broken", "query": "contract"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "missing user header",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"name": "Contract work", "query": map[string]any{"query": "contract"}},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/saved-searches", testCase.requestHeaders, testCase.requestBody, nil)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
			if testCase.expectedStatus != http.StatusCreated {
				assertErrorResponse(assert, w)
			}
		})
	}
}

func TestHandleSavedSearchLifecycle(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/saved-searches", headersFor(server.alice), map[string]any{
		"name":  "Contract notes",
		"query": map[string]any{"query": "contract", "filters": map[string]any{"entity_types": []string{"note"}}},
	}, nil)
	assert.Equal(http.StatusCreated, w.Code, w.Body.String())
	var saved savedsearch.SavedSearch
	decodeData(assert, w, &saved)
	assert.Equal("Contract notes", saved.Name)
	assert.Equal(server.alice, saved.UserID)
	assert.Zero(saved.UseCount)
	assert.Nil(saved.LastUsedAt)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/saved-searches", headersFor(server.bob), nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	var listed []savedsearch.SavedSearch
	decodeData(assert, w, &listed)
	assert.Empty(listed, "saved searches belong to their owner")

	executeEndpoint := fmt.Sprintf("/saved-searches/%d/execute", saved.ID)
	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, executeEndpoint, headersFor(server.bob), nil, nil)
	assert.Equal(http.StatusNotFound, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, executeEndpoint, headersFor(server.alice), nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	var searchResponse SearchResponse
	decodeData(assert, w, &searchResponse)
	assert.Equal(1, searchResponse.Total)
	assert.Equal("note", searchResponse.Results[0].Type)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/saved-searches", headersFor(server.alice), nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	decodeData(assert, w, &listed)
	assert.Len(listed, 1)
	assert.Equal(1, listed[0].UseCount)
	assert.NotNil(listed[0].LastUsedAt)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/saved-searches/suggestions", headersFor(server.alice), nil, map[string]string{"prefix": "CON"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	var suggestions []string
	decodeData(assert, w, &suggestions)
	assert.Equal([]string{"contract"}, suggestions)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/saved-searches/suggestions", headersFor(server.alice), nil, map[string]string{"limit": "51"})
	assert.Equal(http.StatusNotAcceptable, w.Code, w.Body.String())

	deleteEndpoint := fmt.Sprintf("/saved-searches/%d", saved.ID)
	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, deleteEndpoint, headersFor(server.bob), nil, nil)
	assert.Equal(http.StatusNotFound, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, deleteEndpoint, headersFor(server.alice), nil, nil)
	assert.Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, deleteEndpoint, headersFor(server.alice), nil, nil)
	assert.Equal(http.StatusNotFound, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, executeEndpoint, headersFor(server.alice), nil, nil)
	assert.Equal(http.StatusNotFound, w.Code, w.Body.String())
}
