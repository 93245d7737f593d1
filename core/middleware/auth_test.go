package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartschedule/core/config"
	"smartschedule/core/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func setupJWT(t *testing.T) {
	t.Helper()
	config.Set(&config.Config{JWT: config.JWTConfig{Secret: "test-secret"}})
	t.Cleanup(func() { config.Set(nil) })
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	setupJWT(t)
	userID := uuid.New()
	token, err := utils.GenerateToken(userID, nil, utils.ScopeTokenAccess, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned an error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got uuid.UUID
	handler := AuthMiddleware()(func(c echo.Context) error {
		id, appErr := GetUserID(c)
		if appErr != nil {
			return appErr
		}
		got = id
		return c.NoContent(http.StatusNoContent)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler returned an error: %v", err)
	}
	if got != userID {
		t.Errorf("Expected user %s, got %s", userID, got)
	}
}

func TestAuthMiddleware_RejectsMissingAndExpired(t *testing.T) {
	setupJWT(t)
	expired, err := utils.GenerateToken(uuid.New(), nil, utils.ScopeTokenAccess, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken returned an error: %v", err)
	}

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"expired": "Bearer " + expired,
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			called := false
			handler := AuthMiddleware()(func(c echo.Context) error {
				called = true
				return nil
			})
			if err := handler(c); err != nil {
				t.Fatalf("handler returned an error: %v", err)
			}
			if called {
				t.Error("Expected next handler not to be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
		})
	}
}
