package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"telecalc/pkg/models"
)

type documentsResponse struct {
	Documents []models.Document `json:"documents"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, documentsResponse{Documents: s.docs.List()})
}

// handleUpsertDocuments accepts a single document or an array of them.
func (s *Server) handleUpsertDocuments(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}

	var docs []models.Document
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			s.writeError(w, r, &badRequest{msg: "invalid document list: " + err.Error()})
			return
		}
	} else {
		var d models.Document
		if err := json.Unmarshal(trimmed, &d); err != nil {
			s.writeError(w, r, &badRequest{msg: "invalid document: " + err.Error()})
			return
		}
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		s.writeError(w, r, &badRequest{msg: "no documents given"})
		return
	}

	stored, err := s.docs.Upsert(docs...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: stored})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docs.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
