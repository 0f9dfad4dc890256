package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/stats"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := func(err error) string {
		if err != nil {
			return err.Error()
		}
		return "ok"
	}

	pings := s.db.Ping(r.Context())
	code := http.StatusOK
	overall := "ok"
	for _, err := range pings {
		if err != nil {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
	}

	s.writeJSON(w, code, envelope{
		"status":   overall,
		"stats_db": status(pings[database.StatsStore]),
		"auth_db":  status(pings[database.AuthStore]),
		"clients":  s.broker.ClientCount(),
	})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queries.DashboardStats(r.Context()))
}

func (s *Server) handleTopPlayer(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.queries.TopRatedPlayer(ctx) })
}

func (s *Server) handleHighestPotential(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.queries.HighestPotentialPlayer(ctx) })
}

func (s *Server) handleAvgRating(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.queries.AvgRating(ctx) })
}

// handleAvgPlayerAge never fails; the query falls back to a fixed default.
func (s *Server) handleAvgPlayerAge(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queries.AvgPlayerAge(r.Context()))
}

func (s *Server) handleTopScorers(w http.ResponseWriter, r *http.Request) {
	n, err := intQuery(r, "limit", stats.DefaultTopN)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.queries.TopScorers(ctx, n) })
}

func (s *Server) handleTopPlaymakers(w http.ResponseWriter, r *http.Request) {
	n, err := intQuery(r, "limit", stats.DefaultTopN)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.queries.TopPlaymakers(ctx, n) })
}

// handleAllViews runs every report at once. Reports that failed are empty
// and listed under "errors".
func (s *Server) handleAllViews(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queries.AllViews(r.Context()))
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	table, err := s.queries.View(r.Context(), chi.URLParam(r, "view"))
	if err != nil {
		if errors.Is(err, stats.ErrUnknownView) {
			s.errorJSON(w, err, http.StatusNotFound)
			return
		}
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, table)
}

// respond runs a single-result query and writes it, or a 500 on failure.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, query func(ctx context.Context) (any, error)) {
	result, err := query(r.Context())
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
