package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content     string   `json:"content"`
		Emotion     string   `json:"emotion"`
		Type        string   `json:"type"`
		Weight      *float64 `json:"weight"`
		Context     string   `json:"context"`
		Tags        []string `json:"tags"`
		SourceAgent string   `json:"sourceAgent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	m, err := s.engine.Ingest(r.Context(), engine.IngestRequest{
		Content:        req.Content,
		Emotion:        req.Emotion,
		Type:           req.Type,
		ExplicitWeight: req.Weight,
		Context:        req.Context,
		Tags:           req.Tags,
		SourceAgent:    req.SourceAgent,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// The query parameter must be present; an empty value is a valid
	// "rank by weight and recency" request, a missing one is a mistake.
	if !q.Has("query") {
		http.Error(w, `{"error":"query parameter required"}`, http.StatusBadRequest)
		return
	}

	req := engine.RecallRequest{
		Query:   q.Get("query"),
		Type:    q.Get("type"),
		Emotion: q.Get("emotion"),
	}
	if v := q.Get("minWeight"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, `{"error":"minWeight must be a number"}`, http.StatusBadRequest)
			return
		}
		req.MinWeight = f
	}
	req.Page = intParam(q.Get("page"))
	req.PageSize = intParam(q.Get("pageSize"))
	req.Limit = intParam(q.Get("limit"))

	page, err := s.engine.Recall(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.All()
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []store.Memory{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memories": records,
		"count":    len(records),
	})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SimilarityThreshold float64 `json:"similarityThreshold"`
		MaxMerges           int     `json:"maxMerges"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
	}

	res, err := s.engine.Consolidate(r.Context(), engine.ConsolidateOptions{
		SimilarityThreshold: req.SimilarityThreshold,
		MaxMerges:           req.MaxMerges,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDA       string  `json:"idA"`
		IDB       string  `json:"idB"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	merged, err := s.engine.Merge(r.Context(), req.IDA, req.IDB, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxAgeDays      int      `json:"maxAgeDays"`
		WeightThreshold *float64 `json:"weightThreshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	threshold := 0.3
	if req.WeightThreshold != nil {
		threshold = *req.WeightThreshold
	}

	moved, err := s.engine.Archive(r.Context(), req.MaxAgeDays, threshold)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"archived": moved})
}

func (s *Server) handleDissonance(w http.ResponseWriter, r *http.Request) {
	score, err := s.engine.ComputeDissonance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"dissonanceScore": score})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Metrics()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Backup()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var snap store.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if err := s.engine.Restore(&snap); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "restored",
		"memories": len(snap.Memories),
	})
}

func intParam(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
