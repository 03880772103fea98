package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"mock-fcm/dispatch"
	"mock-fcm/store"

	"github.com/gin-gonic/gin"
)

func setupTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

// setupTestEngine creates an engine over an empty in-memory store
func setupTestEngine(t *testing.T) (*dispatch.Engine, store.Store) {
	s := store.NewMemoryStore()
	return dispatch.NewEngine(s), s
}

func doRequest(handler gin.HandlerFunc, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	c, w := setupTestContext()
	c.Request = newRequest(method, target, body)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	handler(c)
	c.Writer.WriteHeaderNow()
	return w
}

func newRequest(method, target, body string) *http.Request {
	return httptest.NewRequest(method, target, bytes.NewBufferString(body))
}
