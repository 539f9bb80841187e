package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theproject93/planejar-pro-sub001/internal/pkg/middleware"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/testutils"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/usercontext"
)

func setupAuthApp() (*fiber.App, *usercontext.UserContext) {
	var seen usercontext.UserContext
	app := fiber.New()
	app.Get("/protected", middleware.BearerAuthMiddleware(), func(c *fiber.Ctx) error {
		seen = usercontext.GetUserContext(c)
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &seen
}

func TestBearerAuthMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	app, seen := setupAuthApp()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+testutils.MakeToken(t, "test-secret", "user-1", "noiva@example.com"))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, seen.IsLoggedIn)
	assert.Equal(t, "user-1", seen.UserID)
	assert.Equal(t, "noiva@example.com", seen.Email)
}

func TestBearerAuthMiddlewareRejections(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not a bearer scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, seen := setupAuthApp()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.False(t, seen.IsLoggedIn)
		})
	}
}

func TestBearerAuthMiddlewareWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	app, _ := setupAuthApp()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+testutils.MakeToken(t, "other-secret", "user-1", ""))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerAuthMiddlewareMissingSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	app, _ := setupAuthApp()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+testutils.MakeToken(t, "test-secret", "", "a@b.com"))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerAuthMiddlewareMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	app, _ := setupAuthApp()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+testutils.MakeToken(t, "anything", "user-1", ""))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
