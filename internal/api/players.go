package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/realtime"
	"github.com/intermernet/sportstats/internal/stats"
)

// createPlayerPayload is the JSON body for POST /players.
type createPlayerPayload struct {
	PlayerName string   `json:"player_name" validate:"required,max=100"`
	Birthday   *string  `json:"birthday" validate:"omitempty,max=32"`
	Height     *float64 `json:"height" validate:"omitempty,gt=0"`
	Weight     *float64 `json:"weight" validate:"omitempty,gt=0"`
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	limit, err := intQuery(r, "limit", stats.DefaultPageSize)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	players, err := s.queries.ListPlayers(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	player, err := s.queries.GetPlayer(r.Context(), id)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			s.errorJSON(w, errors.New("Player not found"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, player)
}

func (s *Server) handleGetPlayerStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	history, err := s.queries.PlayerStatsHistory(r.Context(), id)
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

// handleCreatePlayer adds a player. Both API ids are derived from the
// current maximum inside one serialised write transaction.
func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var payload createPlayerPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if err := s.validatePayload(payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	var player *database.Player
	err := s.db.WriteToStatsDB(r.Context(), func(tx *sql.Tx) error {
		var err error
		player, err = s.db.CreatePlayer(r.Context(), tx, database.NewPlayer{
			Name:     strings.TrimSpace(payload.PlayerName),
			Birthday: payload.Birthday,
			Height:   payload.Height,
			Weight:   payload.Weight,
		})
		return err
	})
	if err != nil {
		s.errorJSON(w, fmt.Errorf("could not create player: %w", err))
		return
	}

	s.broker.Broadcast(realtime.Message{Type: realtime.EventPlayerCreated, Payload: player})
	s.writeJSON(w, http.StatusCreated, envelope{
		"success":     true,
		"playerId":    player.ID,
		"playerApiId": player.PlayerAPIID,
	})
}

// Bounds on the number of players in one comparison.
const (
	minCompare = 2
	maxCompare = 4
)

// handleComparePlayers serves GET /compare?ids=1,2[,3,4].
func (s *Server) handleComparePlayers(w http.ResponseWriter, r *http.Request) {
	raw := strings.Split(r.URL.Query().Get("ids"), ",")
	ids := make([]int64, 0, len(raw))
	seen := map[int64]bool{}
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id < 1 {
			s.errorJSON(w, fmt.Errorf("invalid player id %q", part), http.StatusBadRequest)
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < minCompare || len(ids) > maxCompare {
		s.errorJSON(w, fmt.Errorf("provide between %d and %d distinct player ids", minCompare, maxCompare), http.StatusBadRequest)
		return
	}

	players, err := s.queries.ComparePlayers(r.Context(), ids)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			s.errorJSON(w, err, http.StatusNotFound)
			return
		}
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, players)
}
