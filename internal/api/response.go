package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tablelock/internal/lock"
	"tablelock/internal/metrics"
)

// Response messages.
const (
	msgLocked          = "Table locked successfully."
	msgUnlocked        = "Table unlocked successfully."
	msgInvalidLock     = "Invalid request: tableId, userId, and valid duration (in seconds) are required"
	msgInvalidUnlock   = "Invalid request: tableId and userId are required"
	msgInvalidStatus   = "Invalid request: tableId is required"
	msgConflict        = "Table is currently locked by another user."
	msgNotFound        = "No active lock found for this table"
	msgForbidden       = "Unauthorized: Only the user who locked the table can unlock it"
	msgInternalFailure = "Internal server error"
)

// response is the envelope returned by mutating endpoints and on every failure.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusResponse is returned by the status endpoint.
type statusResponse struct {
	IsLocked bool `json:"isLocked"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps a store error to an HTTP status code and result label.
func statusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, metrics.ResultOK
	case errors.Is(err, lock.ErrInvalidArgument):
		return http.StatusBadRequest, metrics.ResultInvalid
	case errors.Is(err, lock.ErrConflict):
		return http.StatusConflict, metrics.ResultConflict
	case errors.Is(err, lock.ErrNotFound):
		return http.StatusNotFound, metrics.ResultNotFound
	case errors.Is(err, lock.ErrForbidden):
		return http.StatusForbidden, metrics.ResultForbidden
	default:
		return http.StatusInternalServerError, metrics.ResultError
	}
}

// messageFor returns the client-facing message for a failed operation.
func messageFor(code int, invalidMsg string) string {
	switch code {
	case http.StatusBadRequest:
		return invalidMsg
	case http.StatusConflict:
		return msgConflict
	case http.StatusNotFound:
		return msgNotFound
	case http.StatusForbidden:
		return msgForbidden
	default:
		return msgInternalFailure
	}
}
