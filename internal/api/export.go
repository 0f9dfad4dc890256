package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/intermernet/sportstats/internal/export"
	"github.com/intermernet/sportstats/internal/stats"
)

// handleExportPlayers downloads one page of the player list (the same page,
// limit and search parameters as GET /players; limit defaults to the maximum).
func (s *Server) handleExportPlayers(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	page, err := intQuery(r, "page", 1)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	limit, err := intQuery(r, "limit", stats.MaxPageSize)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	players, err := s.queries.ListPlayers(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.sendFile(w, format, "players", "Players", export.PlayersTable(players))
}

// handleExportView downloads a named report.
func (s *Server) handleExportView(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	name := chi.URLParam(r, "view")
	view, ok := stats.LookupView(name)
	if !ok {
		s.errorJSON(w, fmt.Errorf("%w: %s", stats.ErrUnknownView, name), http.StatusNotFound)
		return
	}
	table, err := s.queries.View(r.Context(), view.Name)
	if err != nil {
		s.errorJSON(w, err)
		return
	}
	s.sendFile(w, format, view.Name, view.Title, table)
}

// sendFile renders the table in full before writing, so a rendering
// failure still produces a JSON error. name becomes the file name and
// title labels the data inside the file where the format has a place for it.
func (s *Server) sendFile(w http.ResponseWriter, format export.Format, name, title string, table *stats.Table) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, title, table); err != nil {
		s.errorJSON(w, fmt.Errorf("could not render %s export: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("export download interrupted", "file", format.Filename(name), "error", err)
	}
}
