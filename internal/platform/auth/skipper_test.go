package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	cases := []struct {
		path string
		skip bool
	}{
		{"/healthz", true},
		{"/health/db", true},
		{"/metrics", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/auth/register", true},
		{"/api/v1/auth/me", false},
		{"/api/v1/patients", false},
		{"/", false},
	}

	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath(tc.path)
		if got := AuthSkipper(c); got != tc.skip {
			t.Errorf("AuthSkipper(%s) = %v, want %v", tc.path, got, tc.skip)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/healthz") {
		t.Error("expected /healthz to be public")
	}
	if IsPublicPath("/api/v1/forms") {
		t.Error("expected /api/v1/forms to require auth")
	}
}
