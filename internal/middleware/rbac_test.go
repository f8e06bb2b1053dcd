package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func roleContext(role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}
	return c, rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		role    string
		want    int
	}{
		{"matching role", []string{"provider"}, "provider", http.StatusOK},
		{"one of several", []string{"client", "admin"}, "admin", http.StatusOK},
		{"wrong role", []string{"provider"}, "client", http.StatusForbidden},
		{"no role set", []string{"provider"}, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := roleContext(tt.role)
			assert.NoError(t, RequireRoles(tt.allowed...)(okHandler)(c))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminGuard(t *testing.T) {
	c, rec := roleContext("admin")
	assert.NoError(t, AdminGuard(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = roleContext("provider")
	assert.NoError(t, AdminGuard(okHandler)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
