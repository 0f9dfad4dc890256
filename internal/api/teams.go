package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/realtime"
	"github.com/intermernet/sportstats/internal/stats"
)

// createTeamPayload is the JSON body for POST /teams.
type createTeamPayload struct {
	TeamLongName  string  `json:"team_long_name" validate:"required,max=100"`
	TeamShortName *string `json:"team_short_name" validate:"omitempty,max=10"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.queries.ListTeams(r.Context())
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	team, err := s.queries.GetTeam(r.Context(), id)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			s.errorJSON(w, errors.New("Team not found"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var payload createTeamPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if err := s.validatePayload(payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	var team *database.Team
	err := s.db.WriteToStatsDB(r.Context(), func(tx *sql.Tx) error {
		var err error
		team, err = s.db.CreateTeam(r.Context(), tx, strings.TrimSpace(payload.TeamLongName), payload.TeamShortName)
		return err
	})
	if err != nil {
		s.errorJSON(w, fmt.Errorf("could not create team: %w", err))
		return
	}

	s.broker.Broadcast(realtime.Message{Type: realtime.EventTeamCreated, Payload: team})
	s.writeJSON(w, http.StatusCreated, envelope{
		"success":   true,
		"teamId":    team.ID,
		"teamApiId": team.TeamAPIID,
	})
}

func (s *Server) handleListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.queries.ListLeagues(r.Context())
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, leagues)
}

// handleSearch always answers 200; a failing half of the search comes back
// as an empty list.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(chi.URLParam(r, "term"))
	if term == "" {
		s.errorJSON(w, errors.New("search term is required"), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, s.queries.Search(r.Context(), term))
}
