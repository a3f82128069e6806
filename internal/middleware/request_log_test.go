package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/logger"
)

func TestRequestLoggerDoesNotAlterResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	r := gin.New()
	r.Use(AttachTraceContext())
	r.Use(RequestLogger(log))
	r.GET("/projects/:project_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/projects/p1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status passthrough: want=404 got=%d", rec.Code)
	}
}

func TestRequestLoggerTolerantOfNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("nil logger: want=200 got=%d", rec.Code)
	}
}
