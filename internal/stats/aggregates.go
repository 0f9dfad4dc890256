package stats

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// DashboardStats holds the headline row counts.
type DashboardStats struct {
	Players          int64 `json:"players"`
	Teams            int64 `json:"teams"`
	Leagues          int64 `json:"leagues"`
	PlayerAttributes int64 `json:"playerAttributes"`
	TeamAttributes   int64 `json:"teamAttributes"`
	Countries        int64 `json:"countries"`
	DataPoints       int64 `json:"dataPoints"`
}

// DashboardStats counts the six core tables concurrently. A count that
// fails is reported as 0. DataPoints is the sum of the six counts.
func (s *Service) DashboardStats(ctx context.Context) *DashboardStats {
	st := &DashboardStats{}

	count := func(table string, dst *int64) branch {
		return func(ctx context.Context) error {
			return s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+`;`).Scan(dst)
		}
	}

	// A failed Scan leaves its counter at zero.
	s.gather(ctx, "dashboard_stats", map[string]branch{
		"players":          count("Player", &st.Players),
		"teams":            count("Team", &st.Teams),
		"leagues":          count("League", &st.Leagues),
		"playerAttributes": count("Player_Attributes", &st.PlayerAttributes),
		"teamAttributes":   count("Team_Attributes", &st.TeamAttributes),
		"countries":        count("Country", &st.Countries),
	})

	st.DataPoints = st.Players + st.Teams + st.Leagues + st.PlayerAttributes + st.TeamAttributes + st.Countries
	return st
}

// NoData is the name reported by the top-player queries on an empty store.
const NoData = "No data"

// TopPlayer is the best snapshot by overall rating.
type TopPlayer struct {
	Name          string `json:"name"`
	OverallRating int64  `json:"overall_rating"`
}

// PotentialPlayer is the best snapshot by potential.
type PotentialPlayer struct {
	Name      string `json:"name"`
	Potential int64  `json:"potential"`
}

// TopRatedPlayer returns the player with the highest overall rating in
// any snapshot.
func (s *Service) TopRatedPlayer(ctx context.Context) (*TopPlayer, error) {
	query := `
		SELECT p.player_name, pa.overall_rating
		FROM Player_Attributes pa
		JOIN Player p ON pa.player_api_id = p.player_api_id
		WHERE pa.overall_rating IS NOT NULL
		ORDER BY pa.overall_rating DESC
		LIMIT 1;`

	tp := &TopPlayer{}
	err := s.conn().QueryRowContext(ctx, query).Scan(&tp.Name, &tp.OverallRating)
	if errors.Is(err, sql.ErrNoRows) {
		return &TopPlayer{Name: NoData}, nil
	}
	if err != nil {
		return nil, err
	}
	return tp, nil
}

// HighestPotentialPlayer returns the player with the highest potential in
// any snapshot.
func (s *Service) HighestPotentialPlayer(ctx context.Context) (*PotentialPlayer, error) {
	query := `
		SELECT p.player_name, pa.potential
		FROM Player_Attributes pa
		JOIN Player p ON pa.player_api_id = p.player_api_id
		WHERE pa.potential IS NOT NULL
		ORDER BY pa.potential DESC
		LIMIT 1;`

	pp := &PotentialPlayer{}
	err := s.conn().QueryRowContext(ctx, query).Scan(&pp.Name, &pp.Potential)
	if errors.Is(err, sql.ErrNoRows) {
		return &PotentialPlayer{Name: NoData}, nil
	}
	if err != nil {
		return nil, err
	}
	return pp, nil
}

// AvgRating is the mean overall rating across all snapshots.
type AvgRating struct {
	AvgRating float64 `json:"avg_rating"`
}

func (s *Service) AvgRating(ctx context.Context) (*AvgRating, error) {
	var avg sql.NullFloat64
	if err := s.conn().QueryRowContext(ctx, `SELECT AVG(overall_rating) FROM Player_Attributes;`).Scan(&avg); err != nil {
		return nil, err
	}
	return &AvgRating{AvgRating: avg.Float64}, nil
}

// DefaultAvgAge is reported when no birthday can be used.
const DefaultAvgAge = 25.5

// AvgAge is the mean player age in years.
type AvgAge struct {
	AvgAge float64 `json:"avg_age"`
}

// AvgPlayerAge computes the mean age from birthdays. It never fails: a
// precise day-based average is tried first, then a whole-year estimate,
// then DefaultAvgAge.
func (s *Service) AvgPlayerAge(ctx context.Context) *AvgAge {
	const precise = `
		SELECT AVG((julianday('now') - julianday(substr(birthday, 1, 10))) / 365.25)
		FROM Player
		WHERE birthday GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]*';`
	const byYear = `
		SELECT AVG(CAST(strftime('%Y', 'now') AS INTEGER) - CAST(substr(birthday, 1, 4) AS INTEGER))
		FROM Player
		WHERE substr(birthday, 1, 4) GLOB '[0-9][0-9][0-9][0-9]';`

	for i, query := range []string{precise, byYear} {
		var avg sql.NullFloat64
		err := s.conn().QueryRowContext(ctx, query).Scan(&avg)
		if err != nil {
			s.logger.Warn("average age query failed", "attempt", i+1, "error", err)
			continue
		}
		if avg.Valid {
			return &AvgAge{AvgAge: avg.Float64}
		}
	}
	return &AvgAge{AvgAge: DefaultAvgAge}
}

// RankedPlayer is one row of a composite-skill ranking. Score is the
// average over snapshots of the summed skills; Attributes holds the
// average of each skill.
type RankedPlayer struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	Score      float64            `json:"score"`
	Attributes map[string]float64 `json:"attributes"`
}

var (
	scorerSkills    = []string{"finishing", "shot_power", "long_shots"}
	playmakerSkills = []string{"vision", "short_passing", "long_passing", "crossing"}
)

// TopScorers ranks players by average finishing + shot_power + long_shots.
func (s *Service) TopScorers(ctx context.Context, n int) ([]*RankedPlayer, error) {
	return s.rankBySkills(ctx, scorerSkills, ClampTopN(n))
}

// TopPlaymakers ranks players by average vision + short_passing +
// long_passing + crossing.
func (s *Service) TopPlaymakers(ctx context.Context, n int) ([]*RankedPlayer, error) {
	return s.rankBySkills(ctx, playmakerSkills, ClampTopN(n))
}

// rankBySkills averages the sum of skills per player over the snapshots in
// which every skill is present. skills must be trusted column names.
func (s *Service) rankBySkills(ctx context.Context, skills []string, n int) ([]*RankedPlayer, error) {
	var (
		avgs     []string
		sum      []string
		notNulls []string
	)
	for _, c := range skills {
		avgs = append(avgs, "AVG(pa."+c+")")
		sum = append(sum, "pa."+c)
		notNulls = append(notNulls, "pa."+c+" IS NOT NULL")
	}

	query := `
		SELECT p.id, p.player_name, AVG(` + strings.Join(sum, " + ") + `) AS score, ` + strings.Join(avgs, ", ") + `
		FROM Player p
		JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
		WHERE ` + strings.Join(notNulls, " AND ") + `
		GROUP BY p.id, p.player_name
		ORDER BY score DESC
		LIMIT ?;`

	rows, err := s.conn().QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := []*RankedPlayer{}
	for rows.Next() {
		rp := &RankedPlayer{Attributes: make(map[string]float64, len(skills))}
		values := make([]float64, len(skills))
		dest := []any{&rp.ID, &rp.Name, &rp.Score}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, c := range skills {
			rp.Attributes[c] = values[i]
		}
		ranked = append(ranked, rp)
	}
	return ranked, rows.Err()
}
