package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/api/boards/:id", func(c *gin.Context) {
		c.JSON(200, gin.H{"id": c.Param("id")})
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/boards/:id", "200"))
	for _, id := range []string{"1", "2", "3"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/boards/"+id, nil)
		router.ServeHTTP(w, req)
	}
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/boards/:id", "200"))

	if after-before != 3 {
		t.Errorf("counter delta = %v, expected 3", after-before)
	}
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "unmatched", "404"))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/nowhere", nil)
	router.ServeHTTP(w, req)
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "unmatched", "404"))

	if after-before != 1 {
		t.Errorf("counter delta = %v, expected 1", after-before)
	}
}
