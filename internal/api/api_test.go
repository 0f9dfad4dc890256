package api

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/intermernet/sportstats/internal/auth"
	"github.com/intermernet/sportstats/internal/config"
	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/feed"
	"github.com/intermernet/sportstats/internal/realtime"
	"github.com/intermernet/sportstats/internal/stats"
)

const testSecret = "test-secret"

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (m *recordingMailer) SendWelcomeEmail(recipientEmail, name, frontendURL string) error {
	m.mu.Lock()
	m.sent = append(m.sent, recipientEmail)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

type testEnv struct {
	server *httptest.Server
	db     *database.Service
	mailer *recordingMailer
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
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

	cfg := &config.Config{
		JwtSecret:    testSecret,
		TokenTTL:     time.Hour,
		FrontendURL:  "http://localhost:3000",
		QueryTimeout: time.Second,
	}
	for _, m := range mutate {
		m(cfg)
	}

	mailer := &recordingMailer{done: make(chan struct{}, 4)}
	s := NewServer(cfg, db, stats.NewService(db, cfg.QueryTimeout, nil), feed.NewClient("", "", 10, nil),
		realtime.NewBroker(nil), mailer, nil)
	router := chi.NewRouter()
	s.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, db: db, mailer: mailer}
}

// do sends a request and decodes a JSON response body into out (if non-nil).
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

func tokenFor(t *testing.T, id int64, role string) string {
	t.Helper()
	token, err := auth.GenerateJWT(auth.Identity{UserID: id, Name: "T", Email: "t@x.com", Role: role}, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

type errorBody struct {
	Error string `json:"error"`
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	var reg struct {
		Message string       `json:"message"`
		User    UserResponse `json:"user"`
	}
	payload := map[string]string{"name": "A", "email": "a@x.com", "password": "abcdef"}
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", payload, &reg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	want := UserResponse{Name: "A", Email: "a@x.com", Role: "user"}
	if reg.Message != "Registration successful" || reg.User != want {
		t.Errorf("register body = %+v", reg)
	}

	select {
	case <-env.mailer.done:
	case <-time.After(2 * time.Second):
		t.Error("welcome email was not sent")
	}

	var dup errorBody
	resp = env.do(t, http.MethodPost, "/api/auth/register", "", payload, &dup)
	if resp.StatusCode != http.StatusBadRequest || dup.Error != "User already exists" {
		t.Errorf("duplicate register = %d %q", resp.StatusCode, dup.Error)
	}

	var login struct {
		Message string       `json:"message"`
		User    UserResponse `json:"user"`
		Token   string       `json:"token"`
	}
	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "abcdef"}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	if login.Message != "Login successful" || login.User != want || login.Token == "" {
		t.Errorf("login body = %+v", login)
	}

	var me struct {
		User UserResponse `json:"user"`
	}
	resp = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil, &me)
	if resp.StatusCode != http.StatusOK || me.User != want {
		t.Errorf("me = %d %+v", resp.StatusCode, me)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		payload map[string]string
		want    string
	}{
		{"missing name", map[string]string{"email": "a@x.com", "password": "abcdef"}, "All fields are required"},
		{"missing password", map[string]string{"name": "A", "email": "a@x.com"}, "All fields are required"},
		{"short password", map[string]string{"name": "A", "email": "a@x.com", "password": "abc"}, "Password must be at least 6 characters"},
		{"short multibyte password", map[string]string{"name": "A", "email": "a@x.com", "password": "ééééé"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			resp := env.do(t, http.MethodPost, "/api/auth/register", "", tt.payload, &body)
			if resp.StatusCode != http.StatusBadRequest || body.Error != tt.want {
				t.Errorf("got %d %q, want 400 %q", resp.StatusCode, body.Error, tt.want)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "a@x.com", "password": "abcdef"}, nil)

	var body errorBody
	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com"}, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Error != "Email and password are required" {
		t.Errorf("missing password = %d %q", resp.StatusCode, body.Error)
	}

	for _, creds := range []map[string]string{
		{"email": "a@x.com", "password": "wrong-password"},
		{"email": "nobody@x.com", "password": "abcdef"},
	} {
		resp = env.do(t, http.MethodPost, "/api/auth/login", "", creds, &body)
		if resp.StatusCode != http.StatusUnauthorized || body.Error != "Invalid email or password" {
			t.Errorf("login %v = %d %q", creds, resp.StatusCode, body.Error)
		}
	}
}

func TestEmptyDashboard(t *testing.T) {
	env := newTestEnv(t)

	var got stats.DashboardStats
	resp := env.do(t, http.MethodGet, "/api/stats/dashboard", "", nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got != (stats.DashboardStats{}) {
		t.Errorf("dashboard = %+v, want all zero", got)
	}

	var top stats.TopPlayer
	env.do(t, http.MethodGet, "/api/stats/top-player", "", nil, &top)
	if top.Name != stats.NoData {
		t.Errorf("top player = %+v", top)
	}

	var age stats.AvgAge
	env.do(t, http.MethodGet, "/api/stats/avg-player-age", "", nil, &age)
	if age.AvgAge != stats.DefaultAvgAge {
		t.Errorf("avg age = %v, want %v", age.AvgAge, stats.DefaultAvgAge)
	}
}

func TestNotFoundAndBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/players/42", http.StatusNotFound},
		{"/api/teams/42", http.StatusNotFound},
		{"/api/players/abc", http.StatusBadRequest},
		{"/api/views/no-such-view", http.StatusNotFound},
		{"/api/export/views/no-such-view", http.StatusNotFound},
		{"/api/export/players?format=pdf", http.StatusBadRequest},
		{"/api/compare?ids=1", http.StatusBadRequest},
		{"/api/compare?ids=1,2,3,4,5", http.StatusBadRequest},
		{"/api/compare?ids=1,x", http.StatusBadRequest},
		{"/api/external/matches", http.StatusServiceUnavailable},
		{"/api/auth/google/login", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body errorBody
			resp := env.do(t, http.MethodGet, tt.path, "", nil, &body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if body.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestCreatePlayerRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]any{"player_name": "New Player", "height": 180.5}

	resp := env.do(t, http.MethodPost, "/api/players", "", payload, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", resp.StatusCode)
	}

	var created struct {
		Success     bool  `json:"success"`
		PlayerID    int64 `json:"playerId"`
		PlayerAPIID int64 `json:"playerApiId"`
	}
	resp = env.do(t, http.MethodPost, "/api/players", tokenFor(t, 1, database.RoleUser), payload, &created)
	if resp.StatusCode != http.StatusCreated || !created.Success {
		t.Fatalf("create = %d %+v", resp.StatusCode, created)
	}
	if created.PlayerAPIID != 1 {
		t.Errorf("playerApiId = %d, want 1 on an empty store", created.PlayerAPIID)
	}

	var player stats.PlayerDetail
	resp = env.do(t, http.MethodGet, "/api/players/"+itoa(created.PlayerID), "", nil, &player)
	if resp.StatusCode != http.StatusOK || player.PlayerName != "New Player" {
		t.Errorf("get = %d %+v", resp.StatusCode, player.Player)
	}

	var body errorBody
	resp = env.do(t, http.MethodPost, "/api/players", tokenFor(t, 1, database.RoleUser), map[string]any{"height": 180}, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Error != "Player name is required" {
		t.Errorf("invalid create = %d %q", resp.StatusCode, body.Error)
	}
}

func TestCreateTeam(t *testing.T) {
	env := newTestEnv(t)

	var created struct {
		Success   bool  `json:"success"`
		TeamID    int64 `json:"teamId"`
		TeamAPIID int64 `json:"teamApiId"`
	}
	payload := map[string]any{"team_long_name": "Harbour FC", "team_short_name": "HFC"}
	resp := env.do(t, http.MethodPost, "/api/teams", tokenFor(t, 1, database.RoleUser), payload, &created)
	if resp.StatusCode != http.StatusCreated || !created.Success {
		t.Fatalf("create = %d %+v", resp.StatusCode, created)
	}

	var teams []database.Team
	env.do(t, http.MethodGet, "/api/teams", "", nil, &teams)
	if len(teams) != 1 || teams[0].TeamLongName != "Harbour FC" {
		t.Errorf("teams = %+v", teams)
	}
}

func TestSaveMatchesIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]any{"matches": map[string]any{"matches": []map[string]any{
		{"id": 101, "utcDate": "2024-05-01T19:00:00Z", "status": "FINISHED",
			"homeTeam": map[string]string{"name": "Home"}, "awayTeam": map[string]string{"name": "Away"}},
		{"id": 102, "status": "SCHEDULED"},
	}}}

	resp := env.do(t, http.MethodPost, "/api/external/save-matches", "", payload, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	var denied errorBody
	resp = env.do(t, http.MethodPost, "/api/external/save-matches", tokenFor(t, 1, database.RoleUser), payload, &denied)
	if resp.StatusCode != http.StatusForbidden || denied.Error != "Access denied. Admin privileges required" {
		t.Errorf("user token = %d %q, want 403", resp.StatusCode, denied.Error)
	}

	var saved struct {
		Success bool `json:"success"`
		Saved   int  `json:"saved"`
		Total   int  `json:"total"`
	}
	admin := tokenFor(t, 2, database.RoleAdmin)
	resp = env.do(t, http.MethodPost, "/api/external/save-matches", admin, payload, &saved)
	if resp.StatusCode != http.StatusOK || !saved.Success || saved.Saved != 2 || saved.Total != 2 {
		t.Fatalf("admin save = %d %+v", resp.StatusCode, saved)
	}

	env.do(t, http.MethodPost, "/api/external/save-matches", admin, payload, &saved)
	if saved.Saved != 0 || saved.Total != 2 {
		t.Errorf("repeat save = %+v, want nothing new", saved)
	}

	var list []SavedMatchResponse
	env.do(t, http.MethodGet, "/api/external/saved-matches", "", nil, &list)
	if len(list) != 2 {
		t.Fatalf("saved matches = %d, want 2", len(list))
	}

	var bad errorBody
	resp = env.do(t, http.MethodPost, "/api/external/save-matches", admin, map[string]any{"matches": 42}, &bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad payload status = %d", resp.StatusCode)
	}
}

func TestExportViewCSV(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.db.StatsDB().Exec(`INSERT INTO Country (id, name) VALUES (1, 'Spain')`); err != nil {
		t.Fatal(err)
	}
	if _, err := env.db.StatsDB().Exec(`INSERT INTO League (id, country_id, name) VALUES (1, 1, 'Spain LIGA BBVA')`); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(env.server.URL + "/api/export/views/league-country-overview?format=csv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="league-country-overview.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("csv records = %v", records)
	}
}

func TestExportViewXLSXUsesTitle(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/export/views/league-country-overview?format=xlsx")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="league-country-overview.xlsx"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "League - Country Overview" {
		t.Errorf("sheets = %v", sheets)
	}
}

func TestExportPlayersXML(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.db.StatsDB().Exec(`INSERT INTO Player (player_api_id, player_name, player_fifa_api_id) VALUES (1, 'Lionel Messi', 1001)`); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(env.server.URL + "/api/export/players?format=xml")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="players.xml"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	var doc struct {
		Title string `xml:"title,attr"`
		Rows  []struct {
			PlayerName string `xml:"player_name"`
		} `xml:"row"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Players" || len(doc.Rows) != 1 || doc.Rows[0].PlayerName != "Lionel Messi" {
		t.Errorf("document = %+v", doc)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]any
	resp := env.do(t, http.MethodGet, "/api/health", "", nil, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["stats_db"] != "ok" || body["auth_db"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimitEnabled = true
		c.RateLimitRequests = 2
		c.RateLimitWindow = time.Hour
	})

	// Burst is half the window quota, so the second call is already limited.
	if resp := env.do(t, http.MethodGet, "/api/health", "", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d", resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/health", "", nil, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestEventStreamDeliversCreations(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, 1, database.RoleUser)

	resp, err := http.Get(env.server.URL + "/api/events/stream?token=" + token)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("stream = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	env.do(t, http.MethodPost, "/api/teams", token, map[string]any{"team_long_name": "Harbour FC"}, nil)

	select {
	case line := <-lines:
		var msg struct {
			Type    string        `json:"type"`
			Payload database.Team `json:"payload"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		if msg.Type != realtime.EventTeamCreated || msg.Payload.TeamLongName != "Harbour FC" {
			t.Errorf("event = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
