package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", APIKeyMiddleware(key), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{name: "match", key: "secret", header: "secret", want: http.StatusOK},
		{name: "missing", key: "secret", header: "", want: http.StatusUnauthorized},
		{name: "wrong", key: "secret", header: "nope", want: http.StatusUnauthorized},
		{name: "case sensitive", key: "secret", header: "SECRET", want: http.StatusUnauthorized},
		{name: "prefix", key: "secret", header: "secret-extra", want: http.StatusUnauthorized},
		{name: "unconfigured key", key: "", header: "anything", want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			w := httptest.NewRecorder()
			newRouter(tc.key).ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Invalid API key"}`, w.Body.String())
			}
		})
	}
}
