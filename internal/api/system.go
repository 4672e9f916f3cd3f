package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// LogLevelRequest is the body for runtime log-level updates.
type LogLevelRequest struct {
	Level string `json:"level"`
}

// LogLevelResponse reports the active log level.
type LogLevelResponse struct {
	Level string `json:"level"`
}

// handleGetLogLevel returns the current minimum log level.
func (s *Server) handleGetLogLevel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LogLevelResponse{Level: s.logger.Level()})
}

// handleSetLogLevel changes the minimum log level at runtime. The
// change applies process-wide, to every logger derived from the root.
func (s *Server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req LogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	level := strings.ToLower(strings.TrimSpace(req.Level))
	switch level {
	case "debug", "info", "warn", "warning", "error":
	default:
		writeBadRequest(w, "level must be one of debug, info, warn, error")
		return
	}

	s.logger.SetLevel(level)
	s.logger.Info("log level changed", "level", level)

	writeJSON(w, http.StatusOK, LogLevelResponse{Level: s.logger.Level()})
}
