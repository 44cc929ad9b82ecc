// Package handler contains HTTP handlers for the JSON API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/obraguard/obraguard/internal/domain"
)

// ErrorResponse writes a domain error as a JSON error envelope, mapping
// the error code to an HTTP status.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)
	status := ErrorCodeToHTTPStatus(code)

	if status >= 500 {
		logger.Error("request failed",
			"op", op,
			"code", code,
			"status", status,
			"path", r.URL.Path,
			"method", r.Method,
			"error", err,
		)
	} else {
		logger.Info("request rejected",
			"op", op,
			"code", code,
			"status", status,
			"path", r.URL.Path,
			"method", r.Method,
		)
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL, domain.ECONFIG:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// maxJSONBodyBytes caps JSON request bodies at 1 MB.
const maxJSONBodyBytes = 1 << 20

// decodeJSON decodes a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("handler.decodeJSON", "Invalid request body")
	}
	return nil
}
