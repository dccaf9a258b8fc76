package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/powerhawk/archive/internal/handlers"
	"github.com/telhawk-systems/powerhawk/archive/internal/sanitizer"
	"github.com/telhawk-systems/powerhawk/common/logging"
)

func TestRouter_Routes(t *testing.T) {
	h := handlers.New(sanitizer.New([]string{"kw"}, []string{"kw"}), nil, nil, logging.Discard())
	router := NewRouter(h)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/v1/transform", `{"records":[]}`, http.StatusOK},
		{http.MethodGet, "/v1/transform", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}
