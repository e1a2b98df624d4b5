package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdreader/mdreader/internal/ratelimit"
	"github.com/mdreader/mdreader/internal/store"
	"github.com/mdreader/mdreader/pkg/metrics"
	"github.com/mdreader/mdreader/pkg/middleware"
)

func newShareRouter(t *testing.T, maxBytes int64, limit int) *gin.Engine {
	t.Helper()
	lim := ratelimit.New(ratelimit.NewMemoryStore(), limit, time.Hour)
	return newShareRouterWith(t, maxBytes, lim, nil)
}

func newShareRouterWith(t *testing.T, maxBytes int64, lim *ratelimit.Limiter, mir RecordMirror) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.New(t.TempDir(), maxBytes)
	require.NoError(t, err)
	h := NewShareHandler(st, lim, "http://localhost:8000", mir)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(MethodNotAllowed)
	r.Use(middleware.CORS())
	h.Register(r)
	return r
}

func doSave(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func doLoad(r *gin.Engine, idParam string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/load?id="+idParam, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r := newShareRouter(t, 0, 100)

	content := "# Title\n\nbody with *markdown*\n"
	body, _ := json.Marshal(gin.H{"content": content, "title": "  My Report.md  "})
	w := doSave(r, string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Equal(t, true, saved["success"])
	id, _ := saved["id"].(string)
	require.True(t, store.IsValidID(id))
	assert.Equal(t, "My Report.md", saved["title"])
	assert.Equal(t, "my-report", saved["slug"])
	assert.Equal(t, "http://localhost:8000/?doc=my-report-"+id, saved["url"])
	assert.NotEmpty(t, saved["created"])

	// bare id and slug-id forms return the identical record
	for _, param := range []string{id, "any-old-slug-" + id} {
		w2 := doLoad(r, param)
		require.Equal(t, http.StatusOK, w2.Code, "param %q", param)
		var got map[string]any
		require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &got))
		assert.Equal(t, true, got["success"])
		assert.Equal(t, id, got["id"])
		assert.Equal(t, content, got["content"])
		assert.Equal(t, "My Report.md", got["title"])
		assert.Equal(t, float64(len(content)), got["size"])
	}
}

func TestSaveValidation(t *testing.T) {
	r := newShareRouter(t, 0, 100)

	// missing content field
	w := doSave(r, `{"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No content provided")

	// content of the wrong type
	w = doSave(r, `{"content": 42}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Content must be a string")

	// malformed body
	w = doSave(r, `{"content": "x"`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")

	// empty content is a valid document
	w = doSave(r, `{"content": ""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Untitled"`)
}

func TestSaveSizeLimit(t *testing.T) {
	r := newShareRouter(t, 64, 100)

	ok, _ := json.Marshal(gin.H{"content": strings.Repeat("a", 64)})
	w := doSave(r, string(ok))
	require.Equal(t, http.StatusOK, w.Code)

	tooBig, _ := json.Marshal(gin.H{"content": strings.Repeat("a", 65)})
	w = doSave(r, string(tooBig))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Content exceeds maximum size")
}

func TestSaveTitleIsSanitized(t *testing.T) {
	r := newShareRouter(t, 0, 100)

	body, _ := json.Marshal(gin.H{"content": "x", "title": "<script>alert(1)</script>Notes"})
	w := doSave(r, string(body))
	require.Equal(t, http.StatusOK, w.Code)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "alert(1)Notes", saved["title"])
	assert.NotContains(t, w.Body.String(), "<script>")
}

func TestSaveRateLimited(t *testing.T) {
	r := newShareRouter(t, 0, 2)

	for i := 0; i < 2; i++ {
		w := doSave(r, fmt.Sprintf(`{"content":"doc %d"}`, i))
		require.Equal(t, http.StatusOK, w.Code, "save %d should be admitted", i+1)
	}
	w := doSave(r, `{"content":"one too many"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	// the quota is consumed before validation, so even a bad request counts
	w = doSave(r, `{"title":"no content"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoadErrors(t *testing.T) {
	r := newShareRouter(t, 0, 100)

	w := doLoad(r, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No document ID provided")

	for _, bad := range []string{"..%2F..%2Fetc%2Fpasswd", "ABCDEFGH", "abc"} {
		w = doLoad(r, bad)
		require.Equal(t, http.StatusBadRequest, w.Code, "id %q", bad)
		assert.Contains(t, w.Body.String(), "Invalid document ID format")
	}

	w = doLoad(r, "zzzzzzzz")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Document not found")
}

func TestMethodPolicy(t *testing.T) {
	r := newShareRouter(t, 0, 100)

	// preflight gets an empty 200 from the CORS middleware
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/save", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// anything beyond GET/POST/OPTIONS is rejected with the JSON envelope
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/save", strings.NewReader("{}")))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "Method not allowed")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/load", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// fakeMirror records the last upload and signals completion so tests can
// wait for the background goroutine.
type fakeMirror struct {
	err error

	mu       sync.Mutex
	id       string
	content  []byte
	metadata []byte
	done     chan struct{}
}

func (f *fakeMirror) UploadRecord(_ context.Context, id string, content, metadata []byte) error {
	f.mu.Lock()
	f.id = id
	f.content = append([]byte(nil), content...)
	f.metadata = append([]byte(nil), metadata...)
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return f.err
}

func TestSaveMirrorsCommittedRecord(t *testing.T) {
	fm := &fakeMirror{done: make(chan struct{}, 1)}
	lim := ratelimit.New(ratelimit.NewMemoryStore(), 100, time.Hour)
	r := newShareRouterWith(t, 0, lim, fm)

	content := "# Mirrored\n\nbody\n"
	body, _ := json.Marshal(gin.H{"content": content, "title": "Mirror Me"})
	w := doSave(r, string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	id, _ := saved["id"].(string)
	require.True(t, store.IsValidID(id))

	select {
	case <-fm.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirror upload")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()
	assert.Equal(t, id, fm.id)
	assert.Equal(t, content, string(fm.content))
	var meta store.Metadata
	require.NoError(t, json.Unmarshal(fm.metadata, &meta))
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, "mirror-me", meta.Slug)
}

func TestSaveSucceedsWhenMirrorFails(t *testing.T) {
	fm := &fakeMirror{err: errors.New("bucket offline"), done: make(chan struct{}, 1)}
	lim := ratelimit.New(ratelimit.NewMemoryStore(), 100, time.Hour)
	r := newShareRouterWith(t, 0, lim, fm)

	w := doSave(r, `{"content":"still saved"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	id, _ := saved["id"].(string)

	select {
	case <-fm.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirror upload")
	}

	// the document is served normally despite the failed mirror
	w2 := doLoad(r, id)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "still saved")
}

// failingCounters simulates an unreachable rate limit backend.
type failingCounters struct{}

func (failingCounters) Get(context.Context, string) (*ratelimit.Counter, error) {
	return nil, errors.New("backend down")
}

func (failingCounters) Put(context.Context, string, *ratelimit.Counter) error {
	return errors.New("backend down")
}

func TestSaveQuotaBackendFailure(t *testing.T) {
	lim := ratelimit.New(failingCounters{}, 10, time.Hour)
	r := newShareRouterWith(t, 0, lim, nil)

	savedErrBefore := testutil.ToFloat64(metrics.DocumentsSaved.WithLabelValues("error"))
	quotaErrBefore := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("quota_error"))

	w := doSave(r, `{"content":"x"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit check failed")

	assert.Equal(t, quotaErrBefore+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("quota_error")))
	assert.Equal(t, savedErrBefore, testutil.ToFloat64(metrics.DocumentsSaved.WithLabelValues("error")))
}

func TestSaveOversizedBodyRejected(t *testing.T) {
	r := newShareRouter(t, 64, 100)

	// well past the request body cap, not just the content limit
	huge := `{"content":"` + strings.Repeat("a", 16384) + `"}`
	w := doSave(r, huge)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Content exceeds maximum size")
}
