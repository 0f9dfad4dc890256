package stats

import (
	"context"
	"database/sql"
	"errors"

	"github.com/intermernet/sportstats/internal/database"
)

// TeamDetail is a team joined with its most recent tactics snapshot.
type TeamDetail struct {
	database.Team
	Date *string `json:"date,omitempty"`
	*database.TeamTactics
}

// ListTeams returns every team ordered by long name.
func (s *Service) ListTeams(ctx context.Context) ([]*database.Team, error) {
	return s.queryTeams(ctx, `SELECT `+database.TeamColumns+` FROM Team ORDER BY team_long_name;`)
}

func (s *Service) queryTeams(ctx context.Context, query string, args ...any) ([]*database.Team, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []*database.Team{}
	for rows.Next() {
		t := &database.Team{}
		if err := rows.Scan(t.ScanDest()...); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// GetTeam returns the team with the given row id joined with its latest
// snapshot, or ErrNotFound.
func (s *Service) GetTeam(ctx context.Context, id int64) (*TeamDetail, error) {
	query := `
		SELECT ` + qualify("t", database.TeamColumns) + `, ta.date, ` + qualify("ta", database.TacticColumns) + `
		FROM Team t
		LEFT JOIN Team_Attributes ta ON t.team_api_id = ta.team_api_id
		WHERE t.id = ?
		ORDER BY ta.date DESC
		LIMIT 1;`

	detail := &TeamDetail{}
	tactics := &database.TeamTactics{}
	dest := append(detail.Team.ScanDest(), &detail.Date)
	dest = append(dest, tactics.ScanDest()...)

	if err := s.conn().QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if detail.Date != nil {
		detail.TeamTactics = tactics
	}
	return detail, nil
}

// ListLeagues returns leagues with their country name. Leagues whose
// country does not resolve are left out.
func (s *Service) ListLeagues(ctx context.Context) ([]*database.League, error) {
	query := `
		SELECT l.id, l.country_id, l.name, c.name
		FROM League l
		JOIN Country c ON l.country_id = c.id
		ORDER BY l.id;`

	rows, err := s.conn().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leagues := []*database.League{}
	for rows.Next() {
		l := &database.League{}
		if err := rows.Scan(&l.ID, &l.CountryID, &l.Name, &l.CountryName); err != nil {
			return nil, err
		}
		leagues = append(leagues, l)
	}
	return leagues, rows.Err()
}

// SearchResult groups the matches of a free-text search.
type SearchResult struct {
	Players []*database.Player `json:"players"`
	Teams   []*database.Team   `json:"teams"`
}

// Search looks for the term in player names and team names concurrently.
// A failing half comes back as an empty list.
func (s *Service) Search(ctx context.Context, term string) *SearchResult {
	pattern := "%" + term + "%"
	res := &SearchResult{Players: []*database.Player{}, Teams: []*database.Team{}}

	s.gather(ctx, "search", map[string]branch{
		"players": func(ctx context.Context) error {
			players, err := s.queryPlayers(ctx,
				`SELECT `+database.PlayerColumns+` FROM Player WHERE player_name LIKE ? LIMIT ?;`,
				pattern, SearchLimit)
			if err != nil {
				return err
			}
			res.Players = players
			return nil
		},
		"teams": func(ctx context.Context) error {
			teams, err := s.queryTeams(ctx,
				`SELECT `+database.TeamColumns+` FROM Team WHERE team_long_name LIKE ? OR team_short_name LIKE ? LIMIT ?;`,
				pattern, pattern, SearchLimit)
			if err != nil {
				return err
			}
			res.Teams = teams
			return nil
		},
	})
	return res
}

// SavedMatches returns cached external matches, newest first.
func (s *Service) SavedMatches(ctx context.Context, limit int) ([]*database.ExternalMatch, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.db.ListExternalMatches(ctx, s.conn(), limit)
}
