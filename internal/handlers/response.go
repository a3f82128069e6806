// Package handlers implements the gin handlers for every route: project
// and sequence CRUD-lite, single-op and batch mutations, lock lifecycle,
// history/rollback, the hierarchical read API, the analysis engine, and
// the effects capability table. One handler struct per resource,
// constructed with its service dependency and a logger.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/ctxutil"
)

// Meta is the success envelope's meta block: operation_id and
// rollback_available are only populated by mutating routes; request_id
// and server_time are set on every response.
type Meta struct {
	OperationID       string    `json:"operation_id,omitempty"`
	RollbackAvailable bool      `json:"rollback_available,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	ServerTime        time.Time `json:"server_time"`
}

// Envelope is the exact response shape: {data, meta, error?}.
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Meta  Meta       `json:"meta"`
	Error *WireError `json:"error,omitempty"`
}

// WireError is the enriched error shape the wire contract describes: the taxonomy's
// retryable/suggested_fix/suggested_action metadata alongside the typed
// error's own code/message/field/details.
type WireError struct {
	Code             string         `json:"code"`
	Message          string         `json:"message"`
	Field            string         `json:"field,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	Retryable        bool           `json:"retryable"`
	SuggestedFix     string         `json:"suggested_fix,omitempty"`
	SuggestedAction  string         `json:"suggested_action,omitempty"`
}

func metaFor(c *gin.Context) Meta {
	m := Meta{ServerTime: time.Now()}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		m.RequestID = td.RequestID
	}
	return m
}

// RespondOK writes a success envelope with no mutation-specific meta.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Data: data, Meta: metaFor(c)})
}

// RespondCreated is RespondOK with a 201 status. Only project creation
// uses it; clip/layer/audio-track/marker creation goes through the
// mutation path and answers 200.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Data: data, Meta: metaFor(c)})
}

// RespondMutation is a success envelope carrying the operation_id and
// rollback_available fields a mutating route's meta block requires.
func RespondMutation(c *gin.Context, data any, operationID string, rollbackAvailable bool) {
	m := metaFor(c)
	m.OperationID = operationID
	m.RollbackAvailable = rollbackAvailable
	c.JSON(http.StatusOK, Envelope{Data: data, Meta: m})
}

// RespondError writes a *coreerr.Error under the error envelope at the
// taxon's HTTP status.
func RespondError(c *gin.Context, cerr *coreerr.Error) {
	taxon := coreerr.Lookup(cerr.Code)
	c.JSON(taxon.HTTPStatus, Envelope{
		Meta: metaFor(c),
		Error: &WireError{
			Code:            cerr.Code,
			Message:         cerr.Message,
			Field:           cerr.Field,
			Details:         cerr.Details,
			Retryable:       taxon.Retryable,
			SuggestedFix:    taxon.SuggestedFix,
			SuggestedAction: taxon.SuggestedAction,
		},
	})
}

// RespondBadRequest writes a malformed-request error (JSON decode
// failures, missing path params) that never reached a *coreerr.Error,
// classified under the validation family's generic code.
func RespondBadRequest(c *gin.Context, field, message string) {
	RespondError(c, coreerr.New(coreerr.CodeInvalidFieldValue, message).WithField(field))
}
