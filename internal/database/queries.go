package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// DBorTx is an interface that allows functions to accept either a `*sql.DB` for single queries
// or a `*sql.Tx` for operations within a transaction.
type DBorTx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ErrUserNotFound is returned when a role change targets an unknown email.
var ErrUserNotFound = errors.New("user not found")

// --- User Queries (on authDB) ---

func (s *Service) CreateUser(ctx context.Context, db DBorTx, name, email, passwordHash, role string) (*User, error) {
	if role == "" {
		role = RoleUser
	}
	query := `INSERT INTO users (name, email, password, role) VALUES (?, ?, ?, ?);`
	res, err := db.ExecContext(ctx, query, name, email, passwordHash, role)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return s.GetUserByID(ctx, db, id)
}

// CreateUserIfAbsent inserts a user unless the email is already registered.
// It reports whether a row was written.
func (s *Service) CreateUserIfAbsent(ctx context.Context, db DBorTx, name, email, passwordHash, role string) (bool, error) {
	query := `INSERT OR IGNORE INTO users (name, email, password, role) VALUES (?, ?, ?, ?);`
	res, err := db.ExecContext(ctx, query, name, email, passwordHash, role)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, db DBorTx, email string) (*User, error) {
	query := `SELECT id, name, email, password, role, created_at FROM users WHERE email = ?;`
	user := &User{}
	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err // Returns sql.ErrNoRows if not found
	}
	return user, nil
}

func (s *Service) GetUserByID(ctx context.Context, db DBorTx, id int64) (*User, error) {
	query := `SELECT id, name, email, password, role, created_at FROM users WHERE id = ?;`
	user := &User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetUserRole changes the role of the user with the given email.
func (s *Service) SetUserRole(ctx context.Context, db DBorTx, email, role string) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf("invalid role %q: must be %q or %q", role, RoleUser, RoleAdmin)
	}
	res, err := db.ExecContext(ctx, `UPDATE users SET role = ? WHERE email = ?;`, role, email)
	if err != nil {
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// --- Player & Team writes (on statsDB) ---

// NewPlayer carries the caller-supplied fields of a player being created.
type NewPlayer struct {
	Name     string
	Birthday *string
	Height   *float64
	Weight   *float64
}

// CreatePlayer inserts a player whose API ids are derived as current max + 1.
// It must run inside WriteToStatsDB so the max read and the insert are not
// interleaved with another writer.
func (s *Service) CreatePlayer(ctx context.Context, tx *sql.Tx, p NewPlayer) (*Player, error) {
	var apiID, fifaID int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(player_api_id), 0) + 1, COALESCE(MAX(player_fifa_api_id), 0) + 1 FROM Player;`,
	).Scan(&apiID, &fifaID)
	if err != nil {
		return nil, fmt.Errorf("derive player ids: %w", err)
	}

	query := `INSERT INTO Player (player_api_id, player_name, player_fifa_api_id, birthday, height, weight) VALUES (?, ?, ?, ?, ?, ?);`
	res, err := tx.ExecContext(ctx, query, apiID, p.Name, fifaID, p.Birthday, p.Height, p.Weight)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()

	return &Player{
		ID:              id,
		PlayerAPIID:     apiID,
		PlayerName:      p.Name,
		PlayerFifaAPIID: &fifaID,
		Birthday:        p.Birthday,
		Height:          p.Height,
		Weight:          p.Weight,
	}, nil
}

// CreateTeam inserts a team whose API ids are derived as current max + 1.
// Like CreatePlayer it must run inside WriteToStatsDB.
func (s *Service) CreateTeam(ctx context.Context, tx *sql.Tx, longName string, shortName *string) (*Team, error) {
	var apiID, fifaID int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(team_api_id), 0) + 1, COALESCE(MAX(team_fifa_api_id), 0) + 1 FROM Team;`,
	).Scan(&apiID, &fifaID)
	if err != nil {
		return nil, fmt.Errorf("derive team ids: %w", err)
	}

	query := `INSERT INTO Team (team_api_id, team_fifa_api_id, team_long_name, team_short_name) VALUES (?, ?, ?, ?);`
	res, err := tx.ExecContext(ctx, query, apiID, fifaID, longName, shortName)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()

	return &Team{
		ID:            id,
		TeamAPIID:     apiID,
		TeamFifaAPIID: &fifaID,
		TeamLongName:  longName,
		TeamShortName: shortName,
	}, nil
}

// --- External match cache (on statsDB) ---

// SaveExternalMatch inserts the match unless its external id is already
// cached. It reports whether a new row was written.
func (s *Service) SaveExternalMatch(ctx context.Context, db DBorTx, m *ExternalMatch) (bool, error) {
	raw := m.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	query := `
		INSERT OR IGNORE INTO external_matches
			(external_id, competition, home_team, away_team, home_score, away_score, status, utc_date, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	res, err := db.ExecContext(ctx, query,
		m.ExternalID, m.Competition, m.HomeTeam, m.AwayTeam,
		m.HomeScore, m.AwayScore, m.Status, m.UtcDate, string(raw),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListExternalMatches returns cached matches, newest first.
func (s *Service) ListExternalMatches(ctx context.Context, db DBorTx, limit int) ([]*ExternalMatch, error) {
	query := `
		SELECT id, external_id, competition, home_team, away_team, home_score, away_score, status, utc_date, raw_json, created_at
		FROM external_matches
		ORDER BY utc_date DESC, id DESC
		LIMIT ?;`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []*ExternalMatch{}
	for rows.Next() {
		m := &ExternalMatch{}
		var raw string
		if err := rows.Scan(
			&m.ID, &m.ExternalID, &m.Competition, &m.HomeTeam, &m.AwayTeam,
			&m.HomeScore, &m.AwayScore, &m.Status, &m.UtcDate, &raw, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Raw = json.RawMessage(raw)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
