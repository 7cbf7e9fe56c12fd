package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCORSPreflightAdvertisesEveryRouteMethod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodOptions, "/api/v1/projects/p1", nil)
	c.Request.Header.Set("Origin", "http://localhost:3000")
	c.Request.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	CORS(nil)(c)

	require.Equal(t, http.StatusNoContent, rec.Code)
	allowed := rec.Header().Get("Access-Control-Allow-Methods")
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		require.Contains(t, allowed, method)
	}
}

func TestCORSUnknownOriginGetsNoAllowHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	c.Request.Header.Set("Origin", "http://evil.example")

	CORS([]string{"http://localhost:3000"})(c)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
