package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/storage"
	"go.uber.org/zap"
)

// apiSource is the source recorded for posted documents that name none.
const apiSource = "api"

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("k", req.K), zap.Bool("hybrid", req.Hybrid))
	response, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req models.DocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docs, err := req.RawDocuments(apiSource)
	if err != nil {
		s.fail(w, "invalid documents", err)
		return
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()
	ctx := r.Context()
	idx := s.engine.Index()
	n, err := s.indexer.AddDocuments(ctx, idx, docs)
	if err != nil {
		s.fail(w, "adding documents failed", err)
		return
	}
	if n > 0 && s.config.Storage.Location != "" {
		if err := s.indexer.Store().Persist(ctx, idx, s.config.Storage.Location); err != nil {
			s.fail(w, "persist failed", err)
			return
		}
	}
	s.logger.Info("documents added", zap.Int("documents", len(docs)), zap.Int("count", n), zap.Int("size", idx.Size()))
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"documents": len(docs),
		"chunks":    n,
		"size":      idx.Size(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	idx := s.engine.Index()
	resp := map[string]any{
		"index": map[string]any{
			"id":         idx.ID(),
			"created_at": idx.CreatedAt(),
			"info":       idx.Info(),
		},
		"embedding": map[string]any{
			"provider":    s.indexer.Store().Provider().ID(),
			"dimensions":  s.indexer.Store().Provider().Dimensions(),
			"batch_size":  s.config.Embedding.BatchSize,
			"concurrency": s.config.Embedding.Concurrency,
			"cache":       s.config.Embedding.Cache.Type,
		},
		"chunking": map[string]any{
			"chunk_size":    s.config.Chunking.ChunkSize,
			"chunk_overlap": s.config.Chunking.ChunkOverlap,
			"strategy":      s.config.Chunking.Strategy,
		},
		"retrieval": map[string]any{
			"k":      s.config.Retrieval.K,
			"metric": s.config.Retrieval.Metric,
			"hybrid": s.config.Retrieval.Hybrid,
		},
		"storage": map[string]any{
			"backend":  s.config.Storage.Backend,
			"location": s.config.Storage.Location,
		},
	}
	if loc := s.config.Storage.Location; loc != "" {
		if diskBytes, err := storage.DiskUsageBytes(loc); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
		if m, err := s.indexer.Store().Info(r.Context(), loc); err == nil {
			resp["snapshot"] = m
		}
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// fail maps err to an HTTP status and writes it.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindConfiguration, errs.KindEmptyInput, errs.KindDimensionMismatch:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindIncompatibleIndex:
		return http.StatusConflict
	case errs.KindEmbedding:
		return http.StatusBadGateway
	}
	if errors.Is(err, os.ErrNotExist) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
