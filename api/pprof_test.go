package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRegisterPprof(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterPprof(router, "debug/pprof", 0, 0)

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/goroutine?debug=1", "/debug/pprof/mutex"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status: %d", path, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if !strings.Contains(resp.Body.String(), "profile") {
		t.Fatalf("expected pprof index content")
	}
}
