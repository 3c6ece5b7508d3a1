package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/qbridge/chat-service/internal/core/domain"
)

func runRBAC(t *testing.T, identity *domain.Identity) (called bool, err error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if identity != nil {
		c.Set(KeyIdentity, *identity)
	}

	handler := RBAC(domain.StaffRoles...)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	err = handler(c)
	return called, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestRBAC_AllowsStaffRoles(t *testing.T) {
	for _, role := range domain.StaffRoles {
		t.Run(role, func(t *testing.T) {
			called, err := runRBAC(t, &domain.Identity{SubjectID: "alice", Role: role})
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if !called {
				t.Fatalf("next handler not called")
			}
		})
	}
}

func TestRBAC_ForbidsOtherRoles(t *testing.T) {
	for _, role := range []string{"guest", "contractor", ""} {
		called, err := runRBAC(t, &domain.Identity{SubjectID: "alice", Role: role})
		if called {
			t.Fatalf("role %q: should not reach next handler", role)
		}
		if got := statusOf(t, err); got != http.StatusForbidden {
			t.Fatalf("role %q: expected 403, got %d", role, got)
		}
	}
}

func TestRBAC_WithoutIdentityIsUnauthenticated(t *testing.T) {
	called, err := runRBAC(t, nil)
	if called {
		t.Fatalf("should not reach next handler")
	}
	if got := statusOf(t, err); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}
