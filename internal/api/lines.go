package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AttrResponse is the JSON envelope for a single attribute value.
type AttrResponse struct {
	Name  string `json:"name"`
	Attr  string `json:"attr"`
	Value int    `json:"value"`
}

// AttrRequest is the JSON body accepted by attribute writes.
type AttrRequest struct {
	Value int `json:"value"`
}

// handleListLines returns snapshots of every registered line.
func (s *Server) handleListLines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// handleGetLine returns the snapshot of a single line.
func (s *Server) handleGetLine(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.registry.Snapshot(name)
	if err != nil {
		writeLineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetAttr reads one control attribute.
//
// The default representation is text: the bare base-10 integer with a
// trailing newline, exactly as the registry formats it. Clients that
// ask for application/json get an envelope instead.
func (s *Server) handleGetAttr(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	attr := chi.URLParam(r, "attr")

	value, err := s.registry.ReadAttr(name, attr)
	if err != nil {
		writeLineError(w, err)
		return
	}

	if wantsJSON(r) {
		n, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			writeInternalError(w, "malformed attribute value")
			return
		}
		writeJSON(w, http.StatusOK, AttrResponse{Name: name, Attr: attr, Value: n})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	io.WriteString(w, value)
}

// handleSetAttr writes one control attribute.
//
// The body is either a bare base-10 integer (text mode, mirroring the
// MQTT set payloads) or a JSON envelope {"value": N}. Validation and
// side effects are the registry's; a successful write republishes the
// line's retained state.
func (s *Server) handleSetAttr(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	attr := chi.URLParam(r, "attr")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	value := strings.TrimSpace(string(body))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req AttrRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
		value = strconv.Itoa(req.Value)
	}

	if _, err := s.registry.WriteAttr(r.Context(), name, attr, value); err != nil {
		writeLineError(w, err)
		return
	}

	// Read back the applied value: writes can be adjusted on the way
	// in (frequency clamped to the tick rate).
	applied, err := s.registry.ReadAttr(name, attr)
	if err != nil {
		writeLineError(w, err)
		return
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(applied))
	if convErr != nil {
		writeInternalError(w, "malformed attribute value")
		return
	}

	writeJSON(w, http.StatusOK, AttrResponse{Name: name, Attr: attr, Value: n})
}

// wantsJSON reports whether the client asked for a JSON representation.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
