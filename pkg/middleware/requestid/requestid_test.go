package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(t *testing.T, inbound string) (string, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromGin, fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get(Header), fromGin, fromCtx
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	echoed, fromGin, fromCtx := serve(t, "enroll-42.a:b_c")
	assert.Equal(t, "enroll-42.a:b_c", echoed)
	assert.Equal(t, echoed, fromGin)
	assert.Equal(t, echoed, fromCtx)
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	for _, inbound := range []string{"", "has space", "line\nbreak", strings.Repeat("a", 65)} {
		echoed, fromGin, fromCtx := serve(t, inbound)
		assert.Len(t, echoed, 36, inbound)
		assert.NotEqual(t, inbound, echoed)
		assert.Equal(t, echoed, fromGin)
		assert.Equal(t, echoed, fromCtx)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Empty(t, FromContext(WithID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "")))
}
