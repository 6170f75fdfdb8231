// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/app"
	"github.com/meghashyamc/caseindex/config"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/validation"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    map[string]any
	queryParams    map[string]string
	expectedStatus int
	expectedTotal  int
}

type testServer struct {
	router *gin.Engine
	app    *app.App
	alice  int64
	bob    int64
	caseID int64
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func headersFor(userID int64) map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		HeaderUserID:   strconv.FormatInt(userID, 10),
	}
}

const testAdminToken = "test-admin-token"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json", HeaderAdminToken: testAdminToken}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")

	storage := t.TempDir()
	cfg.Set("STORAGE_PATH", storage)
	cfg.Set("INDEX_PATH", "search.bleve")
	cfg.Set("KVDB_PATH", filepath.Join(storage, "kv.db"))
	cfg.Set("SOURCE_DB_PATH", filepath.Join(storage, "source.db"))

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, cfg, newTestLogger())
	assert.NoError(err, "could not set up app")
	t.Cleanup(func() {
		cancel()
		assert.NoError(a.Close(), "could not close app")
	})

	server := &testServer{app: a}
	server.alice, err = a.Source.CreateUser(ctx, "alice")
	assert.NoError(err)
	server.bob, err = a.Source.CreateUser(ctx, "bob")
	assert.NoError(err)

	server.caseID, err = a.Source.CreateCase(ctx, sourcedb.CaseRow{
		UserID:      server.alice,
		Title:       "Smith v Jones",
		Description: "Breach of contract dated 2024-01-05",
		CaseType:    "civil",
		Status:      "active",
		CreatedAt:   time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
	})
	assert.NoError(err)
	_, err = a.Source.CreateNote(ctx, sourcedb.NoteRow{
		UserID:  server.alice,
		CaseID:  &server.caseID,
		Title:   "Call the witness",
		Content: "Ask about the contract signing #urgent",
	})
	assert.NoError(err)

	_, err = a.Index.RebuildIndex(ctx)
	assert.NoError(err, "could not build index")

	validator, err := validation.New(a.Logger)
	assert.NoError(err, "could not create validator")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupIndex(router, a.Logger, a.Index, a.Jobs, validator, cfg.GetAdminToken())
	userRoutes := router.Group("", RequireUser(a.Logger))
	SetupSearch(userRoutes, a.Logger, a.Search, validator)
	SetupSavedSearches(userRoutes, a.Logger, a.SavedSearch, validator)
	server.router = router

	return server
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// decodeData unmarshals the data field of a response envelope into out.
func decodeData(assert *require.Assertions, w *httptest.ResponseRecorder, out any) {
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []string        `json:"errors"`
	}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	assert.Empty(envelope.Errors)
	assert.NoError(json.Unmarshal(envelope.Data, out))
}

func assertErrorResponse(assert *require.Assertions, w *httptest.ResponseRecorder) {
	var envelope response
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	assert.Nil(envelope.Data)
	assert.NotEmpty(envelope.Errors)
}
