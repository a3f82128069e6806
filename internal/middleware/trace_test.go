package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/ctxutil"
)

func TestAttachTraceContextGeneratesIDsWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotTraceID, gotRequestID string
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/healthz", func(c *gin.Context) {
		td := ctxutil.GetTraceData(c.Request.Context())
		if td == nil {
			t.Fatal("expected trace data on request context")
		}
		gotTraceID = td.TraceID
		gotRequestID = td.RequestID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if gotTraceID == "" || gotRequestID == "" {
		t.Fatalf("expected generated ids, got trace=%q request=%q", gotTraceID, gotRequestID)
	}
	if rec.Header().Get(headerTraceID) != gotTraceID {
		t.Fatalf("response trace id header mismatch: header=%q context=%q", rec.Header().Get(headerTraceID), gotTraceID)
	}
	if rec.Header().Get(headerRequestID) != gotRequestID {
		t.Fatalf("response request id header mismatch: header=%q context=%q", rec.Header().Get(headerRequestID), gotRequestID)
	}
}

func TestAttachTraceContextPropagatesInboundIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerTraceID, "trace-123")
	req.Header.Set(headerRequestID, "req-456")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(headerTraceID); got != "trace-123" {
		t.Fatalf("trace id not propagated: got=%q", got)
	}
	if got := rec.Header().Get(headerRequestID); got != "req-456" {
		t.Fatalf("request id not propagated: got=%q", got)
	}
}
