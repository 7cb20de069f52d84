package web

// errors.go turns service errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// operator message from core.MapError plus a status code derived from the
// sentinel the error wraps.

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/masterfile/internal/core"
	"github.com/JonMunkholm/masterfile/internal/logging"
	"github.com/JonMunkholm/masterfile/internal/storage"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	Action    string                  `json:"action,omitempty"`
	Code      string                  `json:"code"`
	RequestID string                  `json:"requestId,omitempty"`
	Result    *core.PublicationResult `json:"result,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownDataset), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidBackupName):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrPublicationBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrCounterConflict), errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrNothingPublished), errors.Is(err, core.ErrReservedColumn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotificationFailed):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrListingUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its operator message.
// result, when non-nil, carries the per-dataset outcome of a publication.
func respondError(w http.ResponseWriter, r *http.Request, err error, result *core.PublicationResult) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:     msg.Message,
		Message:   msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: chimw.GetReqID(r.Context()),
		Result:    result,
	})
}

// respondBadRequest reports a malformed request body or parameter.
func respondBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "detail", detail)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:     detail,
		Message:   detail,
		Action:    "Check the request body",
		Code:      "REQ003",
		RequestID: chimw.GetReqID(r.Context()),
	})
}
