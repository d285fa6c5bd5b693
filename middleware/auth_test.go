package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"peer-review-api/models"
	"peer-review-api/storage/inmem"
)

const testSecret = "test-secret"

func signed(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims(userID string) Claims {
	return Claims{
		UserID: userID,
		Role:   models.RoleReviewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := inmem.New()
	if err := db.CreateUser(context.Background(), &models.User{ID: "u1", Email: "u1@example.org", Role: models.RoleEditor}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	r := gin.New()
	r.Use(AuthMiddleware(testSecret, db))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString(ContextUserID), "role": c.GetString(ContextRole)})
	})
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsBadCredentials(t *testing.T) {
	r := newAuthRouter(t)

	expired := validClaims("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	cases := map[string]string{
		"missing header":   "",
		"no bearer prefix": signed(t, testSecret, validClaims("u1")),
		"wrong secret":     "Bearer " + signed(t, "other", validClaims("u1")),
		"expired":          "Bearer " + signed(t, testSecret, expired),
		"unknown user":     "Bearer " + signed(t, testSecret, validClaims("ghost")),
	}
	for name, header := range cases {
		w := get(r, "/me", header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Contains(t, w.Body.String(), "error", name)
	}
}

func TestAuthMiddlewareUsesStoredRole(t *testing.T) {
	r := newAuthRouter(t)
	w := get(r, "/me", "Bearer "+signed(t, testSecret, validClaims("u1")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","role":"editor"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(t)
	w := get(r, "/admin", "Bearer "+signed(t, testSecret, validClaims("u1")))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(), CORSMiddleware([]string{"https://app.example.org"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
