package api

import (
	"context"
	"net/http"
	"time"

	"tablelock/internal/lock"

	"github.com/julienschmidt/httprouter"
)

const healthTimeout = 2 * time.Second

// handleLock serves POST /api/tables/lock.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req lockRequest
	err := decodeJSON(w, r, &req)

	var ttl time.Duration
	if err == nil {
		ttl, err = req.Duration.Duration()
	}
	if err == nil {
		err = s.store.Acquire(r.Context(), string(req.TableID), string(req.UserID), ttl)
	}

	if !s.finish(w, r, "acquire", err, msgInvalidLock) {
		return
	}

	s.logger.Debug("table locked",
		"table_id", req.TableID,
		"user_id", req.UserID,
		"ttl", ttl,
		"request_id", requestIDFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, response{Success: true, Message: msgLocked})
}

// handleUnlock serves POST /api/tables/unlock.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req unlockRequest
	err := decodeJSON(w, r, &req)
	if err == nil {
		err = s.store.Release(r.Context(), string(req.TableID), string(req.UserID))
	}

	if !s.finish(w, r, "release", err, msgInvalidUnlock) {
		return
	}

	s.logger.Debug("table unlocked",
		"table_id", req.TableID,
		"user_id", req.UserID,
		"request_id", requestIDFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, response{Success: true, Message: msgUnlocked})
}

// handleStatus serves GET /api/tables/:tableId/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	locked, err := s.store.Status(r.Context(), ps.ByName("tableId"))
	if !s.finish(w, r, "status", err, msgInvalidStatus) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{IsLocked: locked})
}

// handleHealth serves GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pinger, ok := s.store.(lock.Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// finish records the outcome of operation and, on failure, writes the error
// response. It reports whether the handler should write its success body.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, operation string, err error, invalidMsg string) bool {
	code, result := statusFor(err)
	s.metrics.Operations.WithLabelValues(operation, result).Inc()

	if err == nil {
		return true
	}

	if code == http.StatusInternalServerError {
		s.logger.Error("lock operation failed",
			"operation", operation,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
	}
	writeJSON(w, code, response{Success: false, Message: messageFor(code, invalidMsg)})
	return false
}

// handlePanic is installed as the router's panic handler.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	s.logger.Error("panic while serving request",
		"panic", recovered,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
	)
	s.countRequest(r.Method, "panic", http.StatusInternalServerError)
	writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: msgInternalFailure})
}
