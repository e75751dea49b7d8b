package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/persona/internal/source"
	"github.com/ppiankov/persona/internal/store"
)

// maxRequestBytes bounds the POST /analyze body
const maxRequestBytes = 1 << 16

// AnalyzeRequest is the body accepted by POST /analyze
type AnalyzeRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	outcome, err := s.analyzer.Analyze(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, source.ErrInvalidHandle) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorw("Analysis failed", "username", req.Username, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, NewAnalyzeResponse(outcome))
}

// handleHealth reports API health and, when history is enabled, the database
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"api": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.repo.Ping(ctx); err != nil {
			s.logger.Errorw("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

type runView struct {
	ID        string    `json:"run_id"`
	Username  string    `json:"username"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Degraded  bool      `json:"degraded"`
	Citations int       `json:"citations"`
	Grounding int       `json:"grounding"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.repo.ListRuns(r.Context(), r.URL.Query().Get("username"), limit)
	if err != nil {
		s.logger.Errorw("List runs failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:        run.ID,
			Username:  run.Username,
			Provider:  run.Provider,
			Model:     run.Model,
			Degraded:  run.Degraded,
			Citations: run.Citations,
			Grounding: run.Grounding,
			CreatedAt: run.CreatedAt,
		})
	}
	JSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.repo.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Errorw("Get run failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, NewAnalyzeResponse(run.Outcome))
}
