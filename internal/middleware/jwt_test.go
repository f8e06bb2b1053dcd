package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(secret)
	require.NoError(t, err)
	return raw
}

func invoke(authorization string) (*httptest.ResponseRecorder, string, string) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUser, gotRole string
	handler := JWTMiddleware(func(c echo.Context) error {
		gotUser, _ = c.Get("user_id").(string)
		gotRole, _ = c.Get("role").(string)
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec, gotUser, gotRole
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"sub":  "user-1",
		"role": "provider",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, JWTSecret())

	rec, userID, role := invoke("Bearer " + raw)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "provider", role)
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	rec, _, _ := invoke("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsWrongSecret(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte("some-other-secret"))

	rec, _, _ := invoke("Bearer " + raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsExpiredToken(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, JWTSecret())

	rec, _, _ := invoke("Bearer " + raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsMissingSubject(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"role": "client",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, JWTSecret())

	rec, _, _ := invoke("Bearer " + raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
