package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWithSecurityHeaders(cfg SecurityHeadersConfig) http.Header {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(cfg))
	r.GET("/", func(c *gin.Context) { c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x"}) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w.Header()
}

func TestSecurityHeadersMiddleware_API(t *testing.T) {
	h := serveWithSecurityHeaders(APISecurityHeadersConfig(true))

	want := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"X-Frame-Options":              "DENY",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":              "no-referrer",
		"Cross-Origin-Resource-Policy": "cross-origin",
		"X-Content-Type-Options":       "nosniff",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestSecurityHeadersMiddleware_HSTSDisabled(t *testing.T) {
	h := serveWithSecurityHeaders(APISecurityHeadersConfig(false))
	if got := h.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS set without TLS: %q", got)
	}
}

func TestSecurityHeadersMiddleware_EmptyConfig(t *testing.T) {
	h := serveWithSecurityHeaders(SecurityHeadersConfig{})
	for _, k := range []string{"X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if h.Get(k) != "" {
			t.Errorf("%s set for empty config", k)
		}
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff must always be set")
	}
}
