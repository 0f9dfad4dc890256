package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ViewRowLimit caps every named report.
const ViewRowLimit = 10

// View is one fixed report over the snapshot time series.
type View struct {
	Name  string
	Title string
	query string
}

// views is the report catalog in display order.
var views = []View{
	{
		Name:  "view-player-progression",
		Title: "Player Progression",
		// SQLite returns the bare overall_rating from the row holding MIN/MAX(date).
		query: `
			WITH FirstRatings AS (
				SELECT player_api_id, MIN(date) AS first_date, overall_rating AS first_rating
				FROM Player_Attributes
				GROUP BY player_api_id
			),
			LatestRatings AS (
				SELECT player_api_id, MAX(date) AS latest_date, overall_rating AS latest_rating
				FROM Player_Attributes
				GROUP BY player_api_id
			)
			SELECT
				p.player_name AS name,
				fr.first_date,
				fr.first_rating,
				lr.latest_date,
				lr.latest_rating,
				(lr.latest_rating - fr.first_rating) AS improvement
			FROM Player p
			JOIN FirstRatings fr ON p.player_api_id = fr.player_api_id
			JOIN LatestRatings lr ON p.player_api_id = lr.player_api_id
			ORDER BY improvement DESC
			LIMIT 10;`,
	},
	{
		Name:  "high-rated-players-by-foot",
		Title: "High Rated Players by Foot",
		query: `
			SELECT
				preferred_foot AS foot,
				AVG(overall_rating) AS avg,
				COUNT(*) AS count,
				MAX(overall_rating) AS max
			FROM Player_Attributes
			WHERE overall_rating > 70
			GROUP BY preferred_foot
			ORDER BY avg DESC
			LIMIT 10;`,
	},
	{
		Name:  "player-peak-attributes",
		Title: "Player Peak Attributes",
		query: `
			SELECT
				p.player_name AS name,
				pa.date,
				pa.overall_rating AS rating,
				pa.potential,
				pa.finishing,
				pa.short_passing AS passing,
				pa.dribbling
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			JOIN (
				SELECT player_api_id, MAX(overall_rating) AS max_rating
				FROM Player_Attributes
				GROUP BY player_api_id
			) max_ratings ON pa.player_api_id = max_ratings.player_api_id AND pa.overall_rating = max_ratings.max_rating
			ORDER BY rating DESC, potential DESC
			LIMIT 10;`,
	},
	{
		Name:  "all-players-and-attributes",
		Title: "All Players and Attributes",
		query: `
			SELECT
				p.player_name AS name,
				p.birthday,
				pa.date,
				pa.overall_rating AS rating,
				pa.potential
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			WHERE p.player_api_id IN (SELECT player_api_id FROM Player LIMIT 10)
			ORDER BY p.player_name ASC, pa.date DESC
			LIMIT 10;`,
	},
	{
		Name:  "worst-player-union",
		Title: "Low Rating / Low Potential",
		query: `
			SELECT p.player_name AS name, pa.overall_rating AS rating, pa.potential, 'Low Rating' AS category
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			WHERE pa.overall_rating < 60
			UNION ALL
			SELECT p.player_name AS name, pa.overall_rating AS rating, pa.potential, 'Low Potential' AS category
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			WHERE pa.potential < 65
			ORDER BY category, rating ASC
			LIMIT 10;`,
	},
	{
		Name:  "current-player-ratings",
		Title: "Current Player Ratings",
		query: `
			SELECT
				p.player_name AS name,
				pa.date,
				pa.overall_rating AS rating,
				pa.potential,
				pa.preferred_foot AS foot,
				pa.attacking_work_rate AS work_rate
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			WHERE pa.date = (SELECT MAX(date) FROM Player_Attributes WHERE player_api_id = p.player_api_id)
			ORDER BY rating DESC
			LIMIT 10;`,
	},
	{
		Name:  "player-physical-profile",
		Title: "Player Physical Profile",
		query: `
			SELECT
				p.player_name AS name,
				p.height,
				p.weight,
				pa.stamina,
				pa.strength,
				pa.jumping,
				pa.acceleration,
				pa.sprint_speed AS sprint
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			WHERE pa.date = (SELECT MAX(date) FROM Player_Attributes WHERE player_api_id = p.player_api_id)
			ORDER BY p.player_name ASC
			LIMIT 10;`,
	},
	{
		Name:  "player-speed-metrics",
		Title: "Player Speed Metrics",
		query: `
			SELECT
				p.player_name AS name,
				p.height,
				AVG(pa.sprint_speed) AS sprint,
				AVG(pa.acceleration) AS acceleration,
				AVG(pa.agility) AS agility,
				AVG(pa.balance) AS balance
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			GROUP BY p.player_api_id, p.player_name, p.height
			ORDER BY sprint DESC
			LIMIT 10;`,
	},
	{
		Name:  "goalkeeper-rankings",
		Title: "Goalkeeper Rankings",
		query: `
			SELECT
				p.player_name AS name,
				AVG(pa.gk_diving) AS diving,
				AVG(pa.gk_handling) AS handling,
				AVG(pa.gk_kicking) AS kicking,
				AVG(pa.gk_positioning) AS positioning,
				AVG(pa.gk_reflexes) AS reflexes,
				AVG(pa.overall_rating) AS rating
			FROM Player p
			JOIN Player_Attributes pa ON p.player_api_id = pa.player_api_id
			GROUP BY p.player_api_id, p.player_name
			ORDER BY rating DESC
			LIMIT 10;`,
	},
	{
		Name:  "league-country-overview",
		Title: "League / Country Overview",
		query: `
			SELECT c.name AS country, l.name AS league, l.id AS l_id, c.id AS c_id
			FROM Country c
			JOIN League l ON c.id = l.country_id
			ORDER BY c.name ASC
			LIMIT 10;`,
	},
}

// Views lists the report catalog in display order.
func Views() []View {
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// LookupView finds a report by name.
func LookupView(name string) (View, bool) {
	for _, v := range views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Table is a generic result set that keeps the column order of its query.
// It marshals to a JSON array of objects.
type Table struct {
	Columns []string
	Rows    [][]any
}

func newTable() *Table {
	return &Table{Columns: []string{}, Rows: [][]any{}}
}

// MarshalJSON emits each row as an object whose keys follow column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(row[j])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (s *Service) queryTable(ctx context.Context, query string, args ...any) (*Table, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range values {
			switch x := v.(type) {
			case []byte:
				values[i] = string(x)
			case time.Time:
				values[i] = x.Format(time.RFC3339)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	return t, rows.Err()
}

// View runs one named report.
func (s *Service) View(ctx context.Context, name string) (*Table, error) {
	v, ok := LookupView(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, name)
	}
	return s.queryTable(ctx, v.query)
}

// AllViewsResult holds every report. A report that failed has no rows and
// its error message under the same name in Errors.
type AllViewsResult struct {
	Views  map[string]*Table `json:"views"`
	Errors map[string]string `json:"errors"`
}

// AllViews runs every report concurrently. One failing report never
// blocks or fails the others.
func (s *Service) AllViews(ctx context.Context) *AllViewsResult {
	res := &AllViewsResult{
		Views:  make(map[string]*Table, len(views)),
		Errors: map[string]string{},
	}

	var mu sync.Mutex
	branches := make(map[string]branch, len(views))
	for _, v := range views {
		branches[v.Name] = func(ctx context.Context) error {
			t, err := s.queryTable(ctx, v.query)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Views[v.Name] = t
			mu.Unlock()
			return nil
		}
	}

	for name, err := range s.gather(ctx, "all_views", branches) {
		res.Views[name] = newTable()
		res.Errors[name] = err.Error()
	}
	return res
}
