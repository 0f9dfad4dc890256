package stats

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/intermernet/sportstats/internal/database"
)

func newTestStats(t *testing.T) (*Service, *database.Service) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewService(filepath.Join(dir, "stats.sqlite"), filepath.Join(dir, "users.sqlite"), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewService(db, time.Second, nil), db
}

func exec(t *testing.T, db *database.Service, query string, args ...any) {
	t.Helper()
	if _, err := db.StatsDB().Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func addPlayer(t *testing.T, db *database.Service, apiID int64, name string, birthday any) {
	t.Helper()
	exec(t, db, `INSERT INTO Player (player_api_id, player_name, player_fifa_api_id, birthday, height, weight) VALUES (?, ?, ?, ?, 180, 170)`,
		apiID, name, apiID+1000, birthday)
}

// addSnapshot inserts a Player_Attributes row; nil skills are stored as NULL.
func addSnapshot(t *testing.T, db *database.Service, apiID int64, date string, overall, potential, finishing, shotPower, longShots any) {
	t.Helper()
	exec(t, db, `INSERT INTO Player_Attributes (player_api_id, date, overall_rating, potential, finishing, shot_power, long_shots, preferred_foot)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'right')`, apiID, date, overall, potential, finishing, shotPower, longShots)
}

func TestListPlayersPagingAndFilter(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	for i, name := range []string{"Lionel Messi", "Cristiano Ronaldo", "messi junior"} {
		addPlayer(t, db, int64(i+1), name, nil)
	}

	all, err := s.ListPlayers(ctx, 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d players, want 3", len(all))
	}

	page2, err := s.ListPlayers(ctx, 2, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 {
		t.Errorf("page 2 of size 2 has %d players, want 1", len(page2))
	}

	filtered, err := s.ListPlayers(ctx, 1, 50, "Messi")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].PlayerName != "Lionel Messi" {
		t.Errorf("case-sensitive filter returned %+v", filtered)
	}

	beyond, err := s.ListPlayers(ctx, math.MaxInt, MaxPageSize, "")
	if err != nil {
		t.Fatalf("huge page: %v", err)
	}
	if len(beyond) != 0 {
		t.Errorf("huge page returned %d players, want 0", len(beyond))
	}
}

func TestGatherBoundsSlowBranch(t *testing.T) {
	_, db := newTestStats(t)
	s := NewService(db, 100*time.Millisecond, nil)
	addPlayer(t, db, 1, "One", nil)
	addPlayer(t, db, 2, "Two", nil)

	var slow, fast int64
	start := time.Now()
	errs := s.gather(context.Background(), "test", map[string]branch{
		"slow": func(ctx context.Context) error {
			return s.conn().QueryRowContext(ctx, `WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c WHERE x < 2000000000)
				SELECT COUNT(*) FROM c`).Scan(&slow)
		},
		"fast": func(ctx context.Context) error {
			return s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM Player`).Scan(&fast)
		},
	})
	elapsed := time.Since(start)

	if elapsed > 5*time.Second {
		t.Errorf("gather took %v; the slow branch was not cut off", elapsed)
	}
	if errs["slow"] == nil {
		t.Error("slow branch finished without a timeout error")
	}
	if slow != 0 {
		t.Errorf("slow branch result = %d, want default 0", slow)
	}
	if err, ok := errs["fast"]; ok {
		t.Errorf("fast branch failed: %v", err)
	}
	if fast != 2 {
		t.Errorf("fast branch counted %d players, want 2", fast)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 10, 1, 10},
		{4, 1000, 4, MaxPageSize},
		{math.MaxInt, 10, math.MaxInt/10 + 1, 10},
	}
	for _, tt := range tests {
		p, l := ClampPage(tt.page, tt.limit)
		if p != tt.wantPage || l != tt.wantLimit {
			t.Errorf("ClampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.page, tt.limit, p, l, tt.wantPage, tt.wantLimit)
		}
	}
	for _, limit := range []int{1, 7, MaxPageSize} {
		p, l := ClampPage(math.MaxInt, limit)
		if offset := (p - 1) * l; offset < 0 {
			t.Errorf("ClampPage(MaxInt, %d) gives negative offset %d", limit, offset)
		}
	}
	if n := ClampTopN(500); n != MaxTopN {
		t.Errorf("ClampTopN(500) = %d, want %d", n, MaxTopN)
	}
}

func TestGetPlayerReturnsLatestSnapshot(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 10, "Alpha", "1990-01-01 00:00:00")
	addPlayer(t, db, 11, "Beta", nil)
	addSnapshot(t, db, 10, "2010-01-01 00:00:00", 60, 70, 50, 50, 50)
	addSnapshot(t, db, 10, "2015-01-01 00:00:00", 75, 80, 60, 60, 60)

	var alphaID int64
	if err := db.StatsDB().QueryRow(`SELECT id FROM Player WHERE player_api_id = 10`).Scan(&alphaID); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPlayer(ctx, alphaID)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.Ratings == nil || p.OverallRating == nil || *p.OverallRating != 75 {
		t.Fatalf("expected latest snapshot rating 75, got %+v", p.Ratings)
	}
	if p.Date == nil || !strings.HasPrefix(*p.Date, "2015") {
		t.Errorf("date = %v, want 2015 snapshot", p.Date)
	}

	history, err := s.PlayerStatsHistory(ctx, alphaID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || !strings.HasPrefix(history[0].Date, "2015") {
		t.Errorf("history not newest first: %+v", history)
	}

	var betaID int64
	if err := db.StatsDB().QueryRow(`SELECT id FROM Player WHERE player_api_id = 11`).Scan(&betaID); err != nil {
		t.Fatal(err)
	}
	beta, err := s.GetPlayer(ctx, betaID)
	if err != nil {
		t.Fatalf("GetPlayer without snapshots: %v", err)
	}
	if beta.Ratings != nil || beta.Date != nil {
		t.Errorf("player without snapshots should have no snapshot fields: %+v", beta)
	}

	if _, err := s.GetPlayer(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlayer missing: err = %v, want ErrNotFound", err)
	}
	empty, err := s.PlayerStatsHistory(ctx, 9999)
	if err != nil || len(empty) != 0 {
		t.Errorf("history of unknown player = (%v, %v), want empty", empty, err)
	}
}

func TestComparePlayers(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "One", nil)
	addPlayer(t, db, 2, "Two", nil)

	got, err := s.ComparePlayers(ctx, []int64{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].PlayerName != "Two" || got[1].PlayerName != "One" {
		t.Errorf("compare did not keep request order: %+v", got)
	}

	if _, err := s.ComparePlayers(ctx, []int64{1, 404}); !errors.Is(err, ErrNotFound) {
		t.Errorf("compare with missing player: err = %v, want ErrNotFound", err)
	}
}

func TestTeamsAndLeagues(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	exec(t, db, `INSERT INTO Team (team_api_id, team_long_name, team_short_name) VALUES (1, 'Zenit', 'ZEN'), (2, 'Ajax', 'AJA')`)
	exec(t, db, `INSERT INTO Team_Attributes (team_api_id, date, buildUpPlaySpeed) VALUES (2, '2014-09-19 00:00:00', 55)`)

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 2 || teams[0].TeamLongName != "Ajax" {
		t.Errorf("teams not ordered by long name: %+v", teams)
	}

	ajax, err := s.GetTeam(ctx, teams[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if ajax.TeamTactics == nil || *ajax.BuildUpPlaySpeed != 55 {
		t.Errorf("expected latest tactics, got %+v", ajax.TeamTactics)
	}
	if _, err := s.GetTeam(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTeam missing: err = %v, want ErrNotFound", err)
	}

	exec(t, db, `INSERT INTO Country (id, name) VALUES (1, 'Spain')`)
	exec(t, db, `INSERT INTO League (id, country_id, name) VALUES (1, 1, 'LIGA BBVA')`)

	// A league pointing at a missing country can only come from a
	// pre-populated file, so bypass the foreign key on one connection.
	conn, err := db.StatsDB().Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{
		`PRAGMA foreign_keys = OFF`,
		`INSERT INTO League (id, country_id, name) VALUES (2, 99, 'Ghost League')`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	conn.Close()

	leagues, err := s.ListLeagues(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(leagues) != 1 || leagues[0].CountryName != "Spain" {
		t.Errorf("dangling league not dropped: %+v", leagues)
	}
}

func TestSearchIsolatesFailingBranch(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "Andres Iniesta", nil)
	exec(t, db, `INSERT INTO Team (team_api_id, team_long_name, team_short_name) VALUES (1, 'Andorra FC', 'AND')`)

	res := s.Search(ctx, "And")
	if len(res.Players) != 1 || len(res.Teams) != 1 {
		t.Fatalf("search = %d players, %d teams; want 1, 1", len(res.Players), len(res.Teams))
	}

	exec(t, db, `DROP TABLE Team_Attributes`)
	exec(t, db, `DROP TABLE Team`)

	res = s.Search(ctx, "And")
	if len(res.Players) != 1 {
		t.Errorf("players branch affected by team failure: %+v", res.Players)
	}
	if res.Teams == nil || len(res.Teams) != 0 {
		t.Errorf("failed teams branch should be an empty list, got %+v", res.Teams)
	}
}

func TestDashboardStatsSurvivesMissingTable(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "A", nil)
	addPlayer(t, db, 2, "B", nil)
	addSnapshot(t, db, 1, "2010-01-01", 70, 75, 1, 1, 1)
	exec(t, db, `INSERT INTO Country (id, name) VALUES (1, 'Spain')`)
	exec(t, db, `INSERT INTO Team (team_api_id, team_long_name) VALUES (1, 'T')`)
	exec(t, db, `INSERT INTO Team_Attributes (team_api_id, date) VALUES (1, '2010-01-01')`)

	st := s.DashboardStats(ctx)
	want := DashboardStats{Players: 2, Teams: 1, PlayerAttributes: 1, TeamAttributes: 1, Countries: 1, DataPoints: 6}
	if *st != want {
		t.Fatalf("DashboardStats = %+v, want %+v", *st, want)
	}

	exec(t, db, `DROP TABLE Team_Attributes`)
	st = s.DashboardStats(ctx)
	if st.TeamAttributes != 0 || st.Players != 2 || st.Countries != 1 {
		t.Errorf("failed branch leaked into others: %+v", *st)
	}
	if st.DataPoints != 5 {
		t.Errorf("dataPoints = %d, want 5", st.DataPoints)
	}
}

func TestTopPlayersOnEmptyStore(t *testing.T) {
	s, _ := newTestStats(t)
	ctx := context.Background()

	tp, err := s.TopRatedPlayer(ctx)
	if err != nil || tp.Name != NoData || tp.OverallRating != 0 {
		t.Errorf("TopRatedPlayer = (%+v, %v)", tp, err)
	}
	hp, err := s.HighestPotentialPlayer(ctx)
	if err != nil || hp.Name != NoData || hp.Potential != 0 {
		t.Errorf("HighestPotentialPlayer = (%+v, %v)", hp, err)
	}
	avg, err := s.AvgRating(ctx)
	if err != nil || avg.AvgRating != 0 {
		t.Errorf("AvgRating = (%+v, %v)", avg, err)
	}
}

func TestTopPlayers(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "Low", nil)
	addPlayer(t, db, 2, "High", nil)
	addSnapshot(t, db, 1, "2010-01-01", 60, 90, nil, nil, nil)
	addSnapshot(t, db, 2, "2010-01-01", 88, 89, nil, nil, nil)

	tp, err := s.TopRatedPlayer(ctx)
	if err != nil || tp.Name != "High" || tp.OverallRating != 88 {
		t.Errorf("TopRatedPlayer = (%+v, %v)", tp, err)
	}
	hp, err := s.HighestPotentialPlayer(ctx)
	if err != nil || hp.Name != "Low" || hp.Potential != 90 {
		t.Errorf("HighestPotentialPlayer = (%+v, %v)", hp, err)
	}
	avg, err := s.AvgRating(ctx)
	if err != nil || avg.AvgRating != 74 {
		t.Errorf("AvgRating = (%+v, %v), want 74", avg, err)
	}
}

func TestAvgPlayerAge(t *testing.T) {
	t.Run("precise", func(t *testing.T) {
		s, db := newTestStats(t)
		addPlayer(t, db, 1, "Thirty", time.Now().AddDate(-30, 0, 0).Format("2006-01-02 15:04:05"))
		addPlayer(t, db, 2, "Unknown", "n/a")

		got := s.AvgPlayerAge(context.Background()).AvgAge
		if math.Abs(got-30) > 0.05 {
			t.Errorf("avg_age = %v, want ~30", got)
		}
	})

	t.Run("year only", func(t *testing.T) {
		s, db := newTestStats(t)
		addPlayer(t, db, 1, "Vintage", "1990")

		got := s.AvgPlayerAge(context.Background()).AvgAge
		if want := float64(time.Now().Year() - 1990); got != want {
			t.Errorf("avg_age = %v, want %v", got, want)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		s, db := newTestStats(t)
		addPlayer(t, db, 1, "Slash", "12/05/1990")
		addPlayer(t, db, 2, "Null", nil)

		if got := s.AvgPlayerAge(context.Background()).AvgAge; got != DefaultAvgAge {
			t.Errorf("avg_age = %v, want %v", got, DefaultAvgAge)
		}
	})

	t.Run("storage error", func(t *testing.T) {
		s, db := newTestStats(t)
		exec(t, db, `DROP TABLE Player_Attributes`)
		exec(t, db, `DROP TABLE Player`)

		if got := s.AvgPlayerAge(context.Background()).AvgAge; got != DefaultAvgAge {
			t.Errorf("avg_age = %v, want %v", got, DefaultAvgAge)
		}
	})
}

func TestTopScorersExcludesIncompleteSnapshots(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "Striker", nil)
	addPlayer(t, db, 2, "Winger", nil)
	addSnapshot(t, db, 1, "2010-01-01", 80, 80, 80, 80, 80)
	addSnapshot(t, db, 1, "2011-01-01", 80, 80, nil, 99, 99)
	addSnapshot(t, db, 2, "2010-01-01", 70, 70, 70, 70, 70)

	ranked, err := s.TopScorers(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 {
		t.Fatalf("got %d scorers, want 2", len(ranked))
	}
	if ranked[0].Name != "Striker" || ranked[0].Score != 240 {
		t.Errorf("top scorer = %+v, want Striker with 240", ranked[0])
	}
	if ranked[0].Attributes["shot_power"] != 80 {
		t.Errorf("incomplete snapshot counted: %+v", ranked[0].Attributes)
	}

	one, err := s.TopScorers(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Errorf("TopScorers(1) = (%d rows, %v)", len(one), err)
	}

	playmakers, err := s.TopPlaymakers(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(playmakers) != 0 {
		t.Errorf("no snapshot has vision, got %+v", playmakers)
	}
}

func TestViews(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "Riser", "1990-01-01")
	addSnapshot(t, db, 1, "2010-01-01", 60, 70, 50, 50, 50)
	addSnapshot(t, db, 1, "2015-01-01", 75, 80, 60, 60, 60)

	tbl, err := s.View(ctx, "view-player-progression")
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"name", "first_date", "first_rating", "latest_date", "latest_rating", "improvement"}
	if strings.Join(tbl.Columns, ",") != strings.Join(wantCols, ",") {
		t.Errorf("columns = %v, want %v", tbl.Columns, wantCols)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][5] != int64(15) {
		t.Errorf("progression rows = %+v", tbl.Rows)
	}

	out, err := json.Marshal(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), `[{"name":"Riser","first_date":`) {
		t.Errorf("column order not preserved: %s", out)
	}

	if _, err := s.View(ctx, "no-such-view"); !errors.Is(err, ErrUnknownView) {
		t.Errorf("unknown view: err = %v, want ErrUnknownView", err)
	}

	for _, v := range Views() {
		tbl, err := s.View(ctx, v.Name)
		if err != nil {
			t.Errorf("view %s: %v", v.Name, err)
			continue
		}
		if len(tbl.Rows) > ViewRowLimit {
			t.Errorf("view %s returned %d rows", v.Name, len(tbl.Rows))
		}
	}
}

func TestAllViewsIsolatesFailures(t *testing.T) {
	s, db := newTestStats(t)
	ctx := context.Background()
	addPlayer(t, db, 1, "Keeper", nil)
	addSnapshot(t, db, 1, "2010-01-01", 80, 80, 10, 10, 10)
	exec(t, db, `DROP TABLE League`)

	res := s.AllViews(ctx)
	if len(res.Views) != len(Views()) {
		t.Fatalf("got %d views, want %d", len(res.Views), len(Views()))
	}
	if _, ok := res.Errors["league-country-overview"]; !ok {
		t.Error("expected league-country-overview to fail")
	}
	if len(res.Errors) != 1 {
		t.Errorf("unexpected failures: %v", res.Errors)
	}
	if got := res.Views["goalkeeper-rankings"]; got == nil || len(got.Rows) != 1 {
		t.Errorf("goalkeeper-rankings affected by unrelated failure: %+v", got)
	}
	if got := res.Views["league-country-overview"]; got == nil || len(got.Rows) != 0 {
		t.Errorf("failed view should be empty, got %+v", got)
	}
}
