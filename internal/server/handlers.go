package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/indexer"
	"github.com/hyperjump/vecbucket/internal/models"
)

const msgNotFound = "Document not found"

type bulkRequest struct {
	Docs json.RawMessage `json:"docs"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("upload request", zap.String("doc_id", input.DocID))
	id, err := s.indexer.AddDocument(r.Context(), input)
	if err != nil {
		s.respondFailure(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "doc_id": id})
}

func (s *Server) handleUploadBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	inputs, err := indexer.ParseBulk(req.Docs)
	if err != nil {
		s.respondFailure(w, "bulk upload rejected", err)
		return
	}
	n, err := s.indexer.AddDocuments(r.Context(), inputs)
	if err != nil {
		s.respondFailure(w, "bulk upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "count": n})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doc_id")
	doc, err := s.indexer.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, msgNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		s.respondError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", s.config.Search.DefaultListLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	docs, err := s.indexer.ListDocuments(r.Context(), skip, limit)
	if err != nil {
		s.respondFailure(w, "list failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.DocumentList{Documents: docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doc_id")
	s.logger.Debug("delete document request", zap.String("doc_id", id))
	removed, err := s.indexer.DeleteDocument(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "deletion failed", err)
		return
	}
	if !removed {
		s.respondError(w, http.StatusNotFound, msgNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	ids, err := s.engine.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{Matches: ids})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.indexer.Status(r.Context())
	if err != nil {
		s.respondFailure(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.InvalidInput && ae.Err != nil {
		s.respondError(w, status, ae.Err.Error())
		return
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
