package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"grunnlag/pkg/requestcontext"
)

func TestMiddleware(t *testing.T) {
	var seen bool
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		first := requestcontext.Now(r.Context())
		assert.Equal(t, first, requestcontext.Now(r.Context()), "time is fixed for the request")
		seen = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, seen)
}

func TestRequestID(t *testing.T) {
	var got string
	h := chimw.RequestID(RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestcontext.RequestID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-123", got)
}
