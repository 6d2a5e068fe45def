package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hongminglow/istc-be/internal/http/respond"
	"github.com/hongminglow/istc-be/internal/service"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst. An empty body is an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			respond.Error(w, http.StatusBadRequest, "request body is required")
		default:
			respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		}
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

var kindStatus = map[service.Kind]int{
	service.KindBadRequest:   http.StatusBadRequest,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
	service.KindNotFound:     http.StatusNotFound,
	service.KindConflict:     http.StatusConflict,
	service.KindRateLimited:  http.StatusTooManyRequests,
}

// writeError maps a service error onto the response envelope. Internal failures are
// logged in full and reported to the client without detail.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	status, ok := kindStatus[svcErr.Kind]
	if !ok {
		log.ErrorContext(r.Context(), svcErr.Message, "path", r.URL.Path, "error", err)
		respond.Error(w, http.StatusInternalServerError, svcErr.Message)
		return
	}
	respond.Errors(w, status, svcErr.Message, svcErr.Details)
}
