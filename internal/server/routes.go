package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keepsakehq/keepsake/internal/engine"
	"github.com/keepsakehq/keepsake/internal/store"
)

// handleImportMemories accepts either a single memory object or a JSON array
// of memories and stores them as pending.
func (s *Server) handleImportMemories(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"read body failed"}`, http.StatusBadRequest)
		return
	}

	var memories []engine.Memory
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &memories)
	} else {
		var mem engine.Memory
		if err = json.Unmarshal(trimmed, &mem); err == nil {
			memories = append(memories, mem)
		}
	}
	if err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if len(memories) == 0 {
		http.Error(w, `{"error":"no memories in request"}`, http.StatusBadRequest)
		return
	}

	ids := make([]string, 0, len(memories))
	for i := range memories {
		if memories[i].Content == "" {
			http.Error(w, `{"error":"memory content required"}`, http.StatusBadRequest)
			return
		}
		if err := s.db.SaveMemory(&memories[i]); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		ids = append(ids, memories[i].ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"imported": len(ids),
		"ids":      ids,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	memoryID := chi.URLParam(r, "memoryID")

	mem, err := s.db.GetMemory(memoryID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if mem == nil {
		http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
		return
	}

	decision, err := s.db.LatestDecision(memoryID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"memory":   mem,
		"decision": decision,
	})
}

// handleRunBatch evaluates all pending memories against the current
// thresholds and persists one decision per memory under a fresh batch id.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	pending, err := s.db.ListMemoriesByStatus(store.StatusPending)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if len(pending) == 0 {
		http.Error(w, `{"error":"no pending memories"}`, http.StatusConflict)
		return
	}

	batchID := uuid.NewString()
	batch := s.confirmer.ProcessBatch(pending)
	for _, res := range batch.Results {
		if err := s.db.SaveDecision(batchID, res); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}
	s.analytics.RecordBatch(batch)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"batch_id":  batchID,
		"processed": batch.Processed,
		"approved":  batch.Approved,
		"review":    batch.Review,
		"rejected":  batch.Rejected,
		"errors":    batch.Errors,
		"results":   batch.Results,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	decisions, err := s.db.ListDecisions(batchID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if len(decisions) == 0 {
		http.Error(w, `{"error":"batch not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"batch_id":  batchID,
		"decisions": decisions,
	})
}

// handleQueue returns the needs-review memories ranked by significance.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	pending, err := s.db.ListMemoriesByStatus(engine.DecisionNeedsReview)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	list := engine.CreatePrioritizedList(engine.PrioritizeMemories(pending))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":        len(list.Items),
		"distribution": list.Distribution,
		"items":        list.Items,
	})
}

// handleOptimizeQueue fits the review queue into the caller's time budget.
func (s *Server) handleOptimizeQueue(w http.ResponseWriter, r *http.Request) {
	var req engine.ResourceAllocation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.AvailableMinutes <= 0 {
		http.Error(w, `{"error":"available_minutes required"}`, http.StatusBadRequest)
		return
	}

	pending, err := s.db.ListMemoriesByStatus(engine.DecisionNeedsReview)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	queue := engine.ValidationQueue{
		ID:        uuid.NewString(),
		Pending:   pending,
		Resources: req,
	}
	list := engine.CreatePrioritizedList(engine.PrioritizeMemories(pending))
	optimized := engine.OptimizeQueue(queue, list)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(optimized)
}

// handleFeedback records a human verdict on a decided memory, then lets the
// threshold manager adapt on the accumulated window.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemoryID      string `json:"memory_id"`
		HumanDecision string `json:"human_decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.MemoryID == "" {
		http.Error(w, `{"error":"memory_id required"}`, http.StatusBadRequest)
		return
	}
	if req.HumanDecision != engine.HumanValidated && req.HumanDecision != engine.HumanRejected {
		http.Error(w, `{"error":"human_decision must be validated or rejected"}`, http.StatusBadRequest)
		return
	}

	decision, err := s.db.LatestDecision(req.MemoryID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if decision == nil {
		http.Error(w, `{"error":"no decision recorded for memory"}`, http.StatusNotFound)
		return
	}

	feedback := engine.Feedback{
		MemoryID: req.MemoryID,
		Decision: decision.Decision,
		Confidence: engine.ConfidenceScore{
			Overall: decision.Confidence,
			Factors: decision.Factors,
		},
		HumanDecision: req.HumanDecision,
		Timestamp:     time.Now(),
	}

	if err := s.db.AddFeedback(feedback); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if err := s.db.SetMemoryStatus(req.MemoryID, req.HumanDecision); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	s.tracker.Record(feedback)

	adapted := s.confirmer.UpdateThresholds(s.tracker.Window())
	if adapted {
		if err := s.db.SaveThresholds(s.confirmer.Thresholds.Config()); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"status":             "recorded",
		"thresholds_adapted": adapted,
		"threshold_version":  s.confirmer.Thresholds.Config().Version,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.analytics.Report())
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.confirmer.Thresholds.Config())
}

// handlePutThresholds replaces the active config. The manager validates the
// bands and weights and assigns the next version itself.
func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	var cfg engine.ThresholdConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if err := s.confirmer.Thresholds.SetConfig(cfg); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	applied := s.confirmer.Thresholds.Config()
	if err := s.db.SaveThresholds(applied); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(applied)
}
