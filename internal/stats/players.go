package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/intermernet/sportstats/internal/database"
)

// PlayerDetail is a player joined with its most recent attribute snapshot.
// Snapshot fields are omitted for players that have none.
type PlayerDetail struct {
	database.Player
	Date *string `json:"date,omitempty"`
	*database.Ratings
}

// ListPlayers returns one page of players, optionally filtered by a
// case-sensitive substring of the player name. Row order is storage order
// and is not guaranteed to be stable.
func (s *Service) ListPlayers(ctx context.Context, page, limit int, search string) ([]*database.Player, error) {
	page, limit = ClampPage(page, limit)
	offset := (page - 1) * limit

	query := `SELECT ` + database.PlayerColumns + ` FROM Player`
	args := []any{}
	if search != "" {
		query += ` WHERE instr(player_name, ?) > 0`
		args = append(args, search)
	}
	query += ` LIMIT ? OFFSET ?;`
	args = append(args, limit, offset)

	return s.queryPlayers(ctx, query, args...)
}

func (s *Service) queryPlayers(ctx context.Context, query string, args ...any) ([]*database.Player, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*database.Player{}
	for rows.Next() {
		p := &database.Player{}
		if err := rows.Scan(p.ScanDest()...); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// GetPlayer returns the player with the given row id joined with its latest
// snapshot, or ErrNotFound.
func (s *Service) GetPlayer(ctx context.Context, id int64) (*PlayerDetail, error) {
	query := `
		SELECT ` + qualify("p", database.PlayerColumns) + `, pa.date, ` + qualify("pa", database.RatingColumns) + `
		FROM Player p
		LEFT JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
		WHERE p.id = ?
		ORDER BY pa.date DESC
		LIMIT 1;`

	detail := &PlayerDetail{}
	ratings := &database.Ratings{}
	dest := append(detail.Player.ScanDest(), &detail.Date)
	dest = append(dest, ratings.ScanDest()...)

	if err := s.conn().QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if detail.Date != nil {
		detail.Ratings = ratings
	}
	return detail, nil
}

// PlayerStatsHistory returns every snapshot of the player, newest first.
// An unknown player yields an empty history.
func (s *Service) PlayerStatsHistory(ctx context.Context, id int64) ([]*database.PlayerAttributes, error) {
	query := `
		SELECT id, player_fifa_api_id, player_api_id, date, ` + database.RatingColumns + `
		FROM Player_Attributes
		WHERE player_api_id = (SELECT player_api_id FROM Player WHERE id = ?)
		ORDER BY date DESC;`

	rows, err := s.conn().QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []*database.PlayerAttributes{}
	for rows.Next() {
		pa := &database.PlayerAttributes{}
		dest := append([]any{&pa.ID, &pa.PlayerFifaAPIID, &pa.PlayerAPIID, &pa.Date}, pa.Ratings.ScanDest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		history = append(history, pa)
	}
	return history, rows.Err()
}

// ComparePlayers fetches the details of several players concurrently.
// Unlike the dashboard composites this is all-or-nothing: a comparison with
// a missing player is meaningless.
func (s *Service) ComparePlayers(ctx context.Context, ids []int64) ([]*PlayerDetail, error) {
	details := make([]*PlayerDetail, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()

			d, err := s.GetPlayer(qctx, id)
			if err != nil {
				return fmt.Errorf("player %d: %w", id, err)
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}
