package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/keepsakehq/keepsake/internal/engine"
	"github.com/keepsakehq/keepsake/internal/store"
)

// Server is the keepsake validation HTTP API server.
type Server struct {
	db        *store.DB
	confirmer *engine.Confirmer
	tracker   *engine.AccuracyTracker
	analytics *engine.Analytics
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a new Server around an open database and a threshold manager.
// The accuracy tracker starts empty; callers that want continuity across
// restarts replay stored feedback with ReplayFeedback before serving.
func New(db *store.DB, thresholds *engine.ThresholdManager, version string) *Server {
	tracker := engine.NewAccuracyTracker()
	s := &Server{
		db:        db,
		confirmer: engine.NewConfirmer(thresholds),
		tracker:   tracker,
		analytics: engine.NewAnalytics(tracker),
		version:   version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ReplayFeedback loads stored feedback into the accuracy tracker so metrics
// survive restarts.
func (s *Server) ReplayFeedback() error {
	feedback, err := s.db.ListFeedback(0)
	if err != nil {
		return err
	}
	for _, f := range feedback {
		s.tracker.Record(f)
	}
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleImportMemories)
		r.Get("/memories/{memoryID}", s.handleGetMemory)
		r.Post("/batches", s.handleRunBatch)
		r.Get("/batches/{batchID}", s.handleGetBatch)

		r.Get("/queue", s.handleQueue)
		r.Post("/queue/optimize", s.handleOptimizeQueue)

		r.Post("/feedback", s.handleFeedback)
		r.Get("/report", s.handleReport)

		r.Get("/thresholds", s.handleGetThresholds)
		r.Put("/thresholds", s.handlePutThresholds)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	counts, _ := s.db.CountMemoriesByStatus()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.db.Path,
		"memories": counts,
	})
}
