// Package api exposes the interaction engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/anomaly"
	"github.com/arogya-labs/rxguard/internal/engine"
	"github.com/arogya-labs/rxguard/internal/kb"
	"github.com/arogya-labs/rxguard/internal/metrics"
	"github.com/arogya-labs/rxguard/internal/model"
)

// Server wires the engine and knowledge base into HTTP handlers.
type Server struct {
	engine   *engine.Engine
	store    kb.Store
	detector *anomaly.Detector
}

// NewServer creates the API server.
func NewServer(eng *engine.Engine, store kb.Store) *Server {
	return &Server{engine: eng, store: store, detector: anomaly.NewDetector()}
}

// Router builds the chi router with CORS, metrics, and per-client rate
// limiting applied to every route.
func (s *Server) Router(requestsPerSecond int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)
	r.Use(RateLimit(requestsPerSecond))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/interactions/check", s.handleCheck)
		r.Post("/interactions/multi", s.handleMulti)
		r.Post("/doses/check", s.handleDoses)
		r.Get("/kb/stats", s.handleStats)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkRequest struct {
	Drugs []string `json:"drugs"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.CheckInteractions(r.Context(), req.Drugs)
	if err != nil {
		zap.L().Error("interaction check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "interaction check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type multiRequest struct {
	Prescriptions []model.Prescription `json:"prescriptions"`
}

func (s *Server) handleMulti(w http.ResponseWriter, r *http.Request) {
	var req multiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Prescriptions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one prescription is required")
		return
	}

	result, err := s.engine.CheckMultiPrescription(r.Context(), req.Prescriptions)
	if err != nil {
		zap.L().Error("multi-prescription check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "multi-prescription check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type dosesRequest struct {
	Prescription model.Prescription      `json:"prescription"`
	Patient      *anomaly.PatientContext `json:"patient,omitempty"`
}

func (s *Server) handleDoses(w http.ResponseWriter, r *http.Request) {
	var req dosesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Prescription.Medications) == 0 {
		writeError(w, http.StatusBadRequest, "at least one medication is required")
		return
	}

	reports := s.detector.CheckPrescription(req.Prescription, req.Patient)
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		zap.L().Error("kb stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
