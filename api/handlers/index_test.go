package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/services/index"
	"github.com/stretchr/testify/require"
)

func TestHandleRebuild(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	testCases := []testCase{
		{
			name:           "full rebuild",
			requestHeaders: defaultTestRequestHeaders,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "rebuild for one user",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"user_id": server.alice},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "invalid user id",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"user_id": 0},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "user id of the wrong type",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"user_id": "alice"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/index/rebuild", testCase.requestHeaders, testCase.requestBody, nil)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))

			if testCase.expectedStatus != http.StatusAccepted {
				assertErrorResponse(assert, w)
				return
			}

			var rebuildResponse RebuildResponse
			decodeData(assert, w, &rebuildResponse)
			assert.NotEmpty(rebuildResponse.RequestID)

			status := waitForRebuild(assert, server, rebuildResponse.RequestID)
			assert.Equal(index.JobCompleted, status.Status)
			assert.Equal(2, status.Indexed)
			assert.Empty(status.Failures)
		})
	}
}

func TestHandleRebuildStatusUnknown(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/index/rebuild/does-not-exist", defaultTestRequestHeaders, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code, w.Body.String())
	assertErrorResponse(assert, w)
}

func TestHandleStatsAndOptimize(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/index/optimize", defaultTestRequestHeaders, nil, nil)
	assert.Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/index/stats", defaultTestRequestHeaders, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	var stats searchdb.Stats
	decodeData(assert, w, &stats)
	assert.Equal(uint64(2), stats.TotalDocuments)
	assert.Equal(uint64(1), stats.ByEntityType[searchdb.EntityCase])
	assert.Equal(uint64(1), stats.ByEntityType[searchdb.EntityNote])
}

func TestHandleEntityUpdates(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	ctx := context.Background()

	evidenceID, err := server.app.Source.CreateEvidence(ctx, sourcedb.EvidenceRow{
		CaseID:  server.caseID,
		Title:   "Signed agreement",
		Content: "Scanned copy of the signed agreement",
	})
	assert.NoError(err)

	testCases := []struct {
		name           string
		method         string
		endpoint       string
		expectedStatus int
	}{
		{name: "index new evidence", method: http.MethodPut, endpoint: fmt.Sprintf("/index/evidence/%d", evidenceID), expectedStatus: http.StatusNoContent},
		{name: "unknown entity type", method: http.MethodPut, endpoint: "/index/invoice/1", expectedStatus: http.StatusNotAcceptable},
		{name: "invalid entity id", method: http.MethodPut, endpoint: "/index/case/0", expectedStatus: http.StatusNotAcceptable},
		{name: "non numeric entity id", method: http.MethodDelete, endpoint: "/index/case/abc", expectedStatus: http.StatusUnprocessableEntity},
		{name: "remove the case", method: http.MethodDelete, endpoint: fmt.Sprintf("/index/case/%d", server.caseID), expectedStatus: http.StatusNoContent},
		{name: "remove an entry that is not indexed", method: http.MethodDelete, endpoint: "/index/note/9999", expectedStatus: http.StatusNoContent},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, testCase.method, testCase.endpoint, defaultTestRequestHeaders, nil, nil)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
		})
	}

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/search", headersFor(server.alice), map[string]any{"query": "agreement"}, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	var searchResponse SearchResponse
	decodeData(assert, w, &searchResponse)
	assert.Equal(1, searchResponse.Total)
	assert.Equal("evidence", searchResponse.Results[0].Type)

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/search", headersFor(server.alice), map[string]any{"query": "smith"}, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	decodeData(assert, w, &searchResponse)
	assert.Equal(0, searchResponse.Total)
}

func waitForRebuild(assert *require.Assertions, server *testServer, requestID string) index.JobStatus {
	var status index.JobStatus
	assert.Eventually(func() bool {
		w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/index/rebuild/"+requestID, defaultTestRequestHeaders, nil, nil)
		if w.Code != http.StatusOK {
			return false
		}
		decodeData(assert, w, &status)
		return status.Status == index.JobCompleted || status.Status == index.JobFailed
	}, 10*time.Second, 20*time.Millisecond)
	return status
}

func TestIndexRoutesRequireAdminToken(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	testCases := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
	}{
		{name: "missing token", headers: map[string]string{"Content-Type": "application/json"}, expectedStatus: http.StatusForbidden},
		{name: "wrong token", headers: map[string]string{"Content-Type": "application/json", HeaderAdminToken: "guess"}, expectedStatus: http.StatusForbidden},
		{name: "user header is not enough", headers: map[string]string{"Content-Type": "application/json", HeaderUserID: "1"}, expectedStatus: http.StatusForbidden},
		{name: "valid token", headers: defaultTestRequestHeaders, expectedStatus: http.StatusOK},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/index/stats", testCase.headers, nil, nil)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
			if testCase.expectedStatus != http.StatusOK {
				assertErrorResponse(assert, w)
			}
		})
	}
}
