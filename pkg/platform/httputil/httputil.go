// Package httputil writes JSON bodies and maps domain errors to HTTP statuses.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "brick/pkg/domain-errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeDuplicateProperty, dErrors.CodeAlreadyIssued, dErrors.CodeAlreadyClaimed:
		return http.StatusConflict
	case dErrors.CodeInvalidTransition, dErrors.CodeOrderNotActive:
		return http.StatusConflict
	case dErrors.CodeInsufficientBalance, dErrors.CodeBelowThreshold, dErrors.CodeUnsupportedAsset:
		return http.StatusUnprocessableEntity
	case dErrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case dErrors.CodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes {"error": code, "error_description": msg}. Internal errors
// never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		body["error_description"] = err.Error()
	}
	WriteJSON(w, StatusOf(code), body)
}
