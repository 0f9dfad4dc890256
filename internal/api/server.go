package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/intermernet/sportstats/internal/config"
	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/feed"
	"github.com/intermernet/sportstats/internal/realtime"
	"github.com/intermernet/sportstats/internal/stats"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// WelcomeMailer sends the registration greeting.
type WelcomeMailer interface {
	SendWelcomeEmail(recipientEmail, name, frontendURL string) error
}

// Server is the main struct for the API. It holds all dependencies required
// by the HTTP handlers.
type Server struct {
	config   *config.Config
	db       *database.Service
	queries  *stats.Service
	feed     *feed.Client
	broker   *realtime.Broker
	mailer   WelcomeMailer
	logger   *slog.Logger
	validate *validator.Validate
	oauth    *oauth2.Config // nil when Google sign-in is not configured
}

// NewServer wires the handler dependencies. mailer may be nil, in which case
// no welcome mail is sent.
func NewServer(cfg *config.Config, db *database.Service, queries *stats.Service, feedClient *feed.Client,
	broker *realtime.Broker, mailer WelcomeMailer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:   cfg,
		db:       db,
		queries:  queries,
		feed:     feedClient,
		broker:   broker,
		mailer:   mailer,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if cfg.GoogleOAuthEnabled() {
		s.oauth = newGoogleOAuthConfig(cfg)
	}
	return s
}

// envelope is a custom map type used for creating structured JSON responses,
// e.g. `envelope{"user": userObject}`.
type envelope map[string]interface{}

// writeJSON marshals data and sends it with the given status code and
// optional extra headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}, headers ...http.Header) {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		// The JSON error format cannot be trusted here, so fall back to plain text.
		s.logger.Error("failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error: Failed to marshal JSON", http.StatusInternalServerError)
		return
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}

// errorJSON sends `{"error": "message"}`. The status defaults to 500.
func (s *Server) errorJSON(w http.ResponseWriter, err error, status ...int) {
	statusCode := http.StatusInternalServerError
	if len(status) > 0 {
		statusCode = status[0]
	}
	if statusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", statusCode, "error", err)
	}

	s.writeJSON(w, statusCode, envelope{"error": err.Error()})
}

// readJSON decodes a size-limited JSON body into dst.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("bad request: body must not be empty")
		}
		return errors.New("bad request: could not decode JSON")
	}
	return nil
}

// validationMessages maps "<payload>.<Field>.<tag>" to the message a client
// sees when that rule fails.
var validationMessages = map[string]string{
	"registerUserPayload.Name.required":       "All fields are required",
	"registerUserPayload.Email.required":      "All fields are required",
	"registerUserPayload.Password.required":   "All fields are required",
	"registerUserPayload.Password.max":        "Password must be at most 72 characters",
	"loginUserPayload.Email.required":         "Email and password are required",
	"loginUserPayload.Password.required":      "Email and password are required",
	"createPlayerPayload.PlayerName.required": "Player name is required",
	"createPlayerPayload.PlayerName.max":      "Player name must be at most 100 characters",
	"createPlayerPayload.Height.gt":           "Height must be a positive number",
	"createPlayerPayload.Weight.gt":           "Weight must be a positive number",
	"createTeamPayload.TeamLongName.required": "Team name is required",
	"createTeamPayload.TeamLongName.max":      "Team name must be at most 100 characters",
	"createTeamPayload.TeamShortName.max":     "Team short name must be at most 10 characters",
}

// validatePayload runs the struct's validate tags and turns the first
// failure into a client-facing error.
func (s *Server) validatePayload(payload any) error {
	err := s.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if msg, ok := validationMessages[fe.StructNamespace()+"."+fe.Tag()]; ok {
		return errors.New(msg)
	}
	return fmt.Errorf("invalid value for %s", fe.Field())
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// intQuery reads an optional integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
