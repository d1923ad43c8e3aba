package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead covers form boundaries and headers beyond the file bytes.
const multipartOverhead = 64 << 10

// handleImportUpload starts an import session from a multipart CSV upload.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "file too large or invalid form",
			Code:  "INVALID_FORM",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "no file provided",
			Action: `send the CSV in a multipart field named "file"`,
			Code:   "MISSING_FILE",
		})
		return
	}
	defer file.Close()

	state, err := s.service.CreateFromFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

// pasteRequest is the body for POST /api/import/paste.
type pasteRequest struct {
	Text string `json:"text"`
}

// handleImportPaste starts an import session from pasted phone numbers.
func (s *Server) handleImportPaste(w http.ResponseWriter, r *http.Request) {
	var req pasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid JSON body",
			Code:  "INVALID_BODY",
		})
		return
	}

	state, err := s.service.CreateFromPaste(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

// handleGetSession returns the current session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleDiscardSession discards the session and frees its slot.
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mappingRequest is the body for POST /api/import/{sessionID}/mapping.
type mappingRequest struct {
	NameColumn  string `json:"nameColumn"`
	PhoneColumn string `json:"phoneColumn"`
}

// handleSetMapping applies column choices and returns the preview.
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid JSON body",
			Code:  "INVALID_BODY",
		})
		return
	}

	state, err := s.service.SetMapping(r.Context(), chi.URLParam(r, "sessionID"), req.NameColumn, req.PhoneColumn)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleConfirm dispatches the valid contacts of the previewed batch.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Confirm(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// healthResponse is the body for GET /api/health.
type healthResponse struct {
	Status     string `json:"status"`
	Dispatcher string `json:"dispatcher"`
	Sessions   int    `json:"sessions"`
}

// handleHealth reports liveness and the dispatcher backend status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Dispatcher: "ok",
		Sessions:   s.service.SessionCount(),
	}
	status := http.StatusOK

	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Dispatcher = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
