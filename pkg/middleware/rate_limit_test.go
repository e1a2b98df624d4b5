package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func floodReq(addr string) *http.Request {
	req := httptest.NewRequest("GET", "/limited", nil)
	req.RemoteAddr = addr
	return req
}

func TestFloodGuard_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(FloodGuard(10, 2)) // generous rate
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, floodReq("10.9.0.1:1000"))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, floodReq("10.9.0.1:1000"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestFloodGuard_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	// very low rate to force rejections
	r.Use(FloodGuard(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, floodReq("10.9.0.2:1000"))
	require.Equal(t, http.StatusOK, w1.Code)

	// immediate second request -> should be rate-limited
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, floodReq("10.9.0.2:1000"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)

	// wait for a token to replenish and it should be allowed again
	time.Sleep(2100 * time.Millisecond)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, floodReq("10.9.0.2:1000"))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestFloodGuard_KeysAreIndependent(t *testing.T) {
	r := gin.New()
	r.Use(FloodGuard(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, floodReq("10.9.0.3:1000"))
	require.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, floodReq("10.9.0.4:1000"))
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestCORS_PreflightAndHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/x", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	require.Equal(t, "GET, POST, OPTIONS", w2.Header().Get("Access-Control-Allow-Methods"))
}
