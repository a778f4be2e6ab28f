package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"loyaltywallet/gateway/middleware"
)

type errorKind string

const (
	errorKindParams   errorKind = "params"
	errorKindUpstream errorKind = "upstream"
	errorKindTimeout  errorKind = "timeout"
	errorKindSigning  errorKind = "signing"
)

// status maps an error kind to the HTTP status used when status codes are enabled.
func (k errorKind) status() int {
	switch k {
	case errorKindParams:
		return http.StatusBadRequest
	case errorKindTimeout:
		return http.StatusGatewayTimeout
	case errorKindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// responder writes JSON bodies. With statusCodes unset every failure is a 200
// carrying an error field, which is the contract existing callers rely on.
type responder struct {
	statusCodes bool
	obs         *middleware.Observability
	logger      *slog.Logger
}

func (rw *responder) ok(w http.ResponseWriter, body interface{}) {
	rw.write(w, http.StatusOK, body)
}

func (rw *responder) fail(w http.ResponseWriter, r *http.Request, route string, kind errorKind, err error, message string) {
	rw.obs.RecordFailure(route, string(kind))
	if kind != errorKindParams {
		rw.logger.Warn("card operation failed",
			"route", route,
			"kind", string(kind),
			"error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
	}
	status := http.StatusOK
	if rw.statusCodes {
		status = kind.status()
	}
	if message == "" {
		message = http.StatusText(kind.status())
	}
	rw.write(w, status, errorResponse{Error: message})
}

func (rw *responder) write(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		rw.logger.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
