package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/intermernet/sportstats/internal/feed"
	"github.com/intermernet/sportstats/internal/realtime"
)

// saveMatchesPayload is the body of POST /external/save-matches. Matches
// holds the feed response as fetched by the dashboard.
type saveMatchesPayload struct {
	Matches json.RawMessage `json:"matches"`
}

// handleExternalMatches proxies the live feed's match list.
func (s *Server) handleExternalMatches(w http.ResponseWriter, r *http.Request) {
	body, err := s.feed.Matches(r.Context(), r.URL.Query())
	if err != nil {
		s.feedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleSaveMatches caches the posted matches. Admin only.
func (s *Server) handleSaveMatches(w http.ResponseWriter, r *http.Request) {
	var payload saveMatchesPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if len(payload.Matches) == 0 || string(payload.Matches) == "null" {
		s.errorJSON(w, errors.New("Invalid matches data"), http.StatusBadRequest)
		return
	}

	result, err := feed.SaveMatches(r.Context(), s.db, payload.Matches)
	if err != nil {
		if errors.Is(err, feed.ErrNoMatches) {
			s.errorJSON(w, errors.New("Invalid matches data"), http.StatusBadRequest)
			return
		}
		s.errorJSON(w, fmt.Errorf("could not save matches: %w", err))
		return
	}

	if result.Saved > 0 {
		s.broker.Broadcast(realtime.Message{Type: realtime.EventMatchesSaved, Payload: result})
	}

	response := envelope{
		"success": true,
		"saved":   result.Saved,
		"total":   result.Total,
	}
	if len(result.Errors) > 0 {
		response["errors"] = result.Errors
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSavedMatches lists the cached matches, newest first.
func (s *Server) handleSavedMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	matches, err := s.queries.SavedMatches(r.Context(), limit)
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSavedMatchResponseList(matches))
}

// feedError maps feed client failures onto gateway status codes.
func (s *Server) feedError(w http.ResponseWriter, err error) {
	var upstream *feed.UpstreamError
	switch {
	case errors.Is(err, feed.ErrNotConfigured):
		s.errorJSON(w, err, http.StatusServiceUnavailable)
	case errors.As(err, &upstream):
		s.errorJSON(w, err, http.StatusBadGateway)
	default:
		s.errorJSON(w, fmt.Errorf("could not reach match feed: %w", err), http.StatusBadGateway)
	}
}
