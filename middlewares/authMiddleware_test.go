package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/gin-gonic/gin"
)

func guardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.DELETE("/guarded", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func doGuardedDelete(t *testing.T, r *gin.Engine, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodDelete, "/guarded", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAdminAllowsAdminClaim(t *testing.T) {
	r := guardedRouter()

	token, err := utils.JwtGenerate(1, "A")
	if err != nil {
		t.Fatal(err)
	}
	if code := doGuardedDelete(t, r, token); code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d for admin claim", code, http.StatusNoContent)
	}
}

func TestRequireAdminRejectsOperatorClaim(t *testing.T) {
	r := guardedRouter()

	token, err := utils.JwtGenerate(2, "O")
	if err != nil {
		t.Fatal(err)
	}
	if code := doGuardedDelete(t, r, token); code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d for operator claim", code, http.StatusForbidden)
	}
}

func TestRequireAdminRejectsAnonymous(t *testing.T) {
	r := guardedRouter()

	if code := doGuardedDelete(t, r, ""); code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d without credentials", code, http.StatusForbidden)
	}
}
