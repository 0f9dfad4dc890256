package api

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleOauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/intermernet/sportstats/internal/auth"
	"github.com/intermernet/sportstats/internal/config"
	"github.com/intermernet/sportstats/internal/database"
)

// --- Structs for JSON Payloads ---

// registerUserPayload defines the structure of the JSON body expected for user registration.
type registerUserPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// loginUserPayload defines the structure of the JSON body expected for user login.
type loginUserPayload struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var (
	errUserExists         = errors.New("User already exists")
	errInvalidCredentials = errors.New("Invalid email or password")
)

// --- PASSWORD-BASED AUTH ---

// handleRegisterUser creates a new account with the default role. The
// existence check and the insert share one auth-store transaction.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var payload registerUserPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Email = strings.TrimSpace(payload.Email)
	if err := s.validatePayload(payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if err := auth.CheckPasswordPolicy(payload.Password); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
		s.errorJSON(w, fmt.Errorf("could not hash password: %w", err))
		return
	}

	var user *database.User
	err = s.db.WriteToAuthDB(r.Context(), func(tx *sql.Tx) error {
		_, err := s.db.GetUserByEmail(r.Context(), tx, payload.Email)
		if err == nil {
			return errUserExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		user, err = s.db.CreateUser(r.Context(), tx, payload.Name, payload.Email, hashedPassword, database.RoleUser)
		return err
	})
	if err != nil {
		if errors.Is(err, errUserExists) {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
		s.errorJSON(w, fmt.Errorf("could not create user: %w", err))
		return
	}

	if s.mailer != nil {
		go func(email, name string) {
			if err := s.mailer.SendWelcomeEmail(email, name, s.config.FrontendURL); err != nil {
				s.logger.Warn("welcome email not sent", "email", email, "error", err)
			}
		}(user.Email, user.Name)
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"message": "Registration successful",
		"user":    toUserResponse(user),
	})
}

// handleLoginUser verifies a password and issues an access token.
func (s *Server) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var payload loginUserPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if err := s.validatePayload(payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), s.db.AuthDB(), payload.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errInvalidCredentials, http.StatusUnauthorized)
			return
		}
		s.errorJSON(w, err)
		return
	}

	// OAuth-only accounts have no password hash and never match.
	if !auth.CheckPasswordHash(payload.Password, user.Password) {
		s.errorJSON(w, errInvalidCredentials, http.StatusUnauthorized)
		return
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.errorJSON(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"message": "Login successful",
		"user":    toUserResponse(user),
		"token":   token,
	})
}

// handleGetMe returns the account behind the bearer token.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusUnauthorized)
		return
	}

	user, err := s.db.GetUserByID(r.Context(), s.db.AuthDB(), claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, database.ErrUserNotFound, http.StatusNotFound)
			return
		}
		s.errorJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": toUserResponse(user)})
}

func (s *Server) issueToken(user *database.User) (string, error) {
	token, err := auth.GenerateJWT(auth.Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	}, s.config.JwtSecret, s.config.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return token, nil
}

// --- OAUTH LOGIC ---

const oauthStateCookie = "oauthstate"

// newGoogleOAuthConfig builds the Google OAuth2 client configuration.
func newGoogleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleOauthClientID,
		ClientSecret: cfg.GoogleOauthClientSecret,
		RedirectURL:  cfg.GoogleOauthRedirectURL,
		Scopes:       []string{googleOauth2.UserinfoEmailScope, googleOauth2.UserinfoProfileScope},
		Endpoint:     google.Endpoint,
	}
}

// generateStateOauthCookie creates a random state string and sets it as an
// HttpOnly cookie to guard the OAuth flow against CSRF.
func generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// handleGoogleLogin redirects the user to Google's consent page.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("Google sign-in is not configured"), http.StatusNotFound)
		return
	}
	state, err := generateStateOauthCookie(w)
	if err != nil {
		s.errorJSON(w, fmt.Errorf("could not create oauth state: %w", err))
		return
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleGoogleCallback completes the OAuth flow: it exchanges the code,
// fetches the Google profile, creates the account on first sign-in and
// hands our own token to the dashboard.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("Google sign-in is not configured"), http.StatusNotFound)
		return
	}

	// 1. Validate the state cookie.
	oauthState, err := r.Cookie(oauthStateCookie)
	if err != nil || oauthState.Value == "" || r.FormValue("state") != oauthState.Value {
		s.errorJSON(w, errors.New("invalid oauth state"), http.StatusUnauthorized)
		return
	}

	// 2. Exchange the authorization code for an access token.
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	token, err := s.oauth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to exchange code for token: %w", err), http.StatusBadGateway)
		return
	}

	// 3. Fetch the Google profile.
	oauth2Service, err := googleOauth2.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to create oauth service: %w", err))
		return
	}
	userInfo, err := oauth2Service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to get user info: %w", err), http.StatusBadGateway)
		return
	}
	if userInfo.Email == "" {
		s.errorJSON(w, errors.New("Google account has no email address"), http.StatusBadRequest)
		return
	}

	// 4. Upsert the user. OAuth-only accounts carry an empty password hash.
	var user *database.User
	err = s.db.WriteToAuthDB(r.Context(), func(tx *sql.Tx) error {
		name := userInfo.Name
		if name == "" {
			name = userInfo.Email
		}
		if _, err := s.db.CreateUserIfAbsent(r.Context(), tx, name, userInfo.Email, "", database.RoleUser); err != nil {
			return err
		}
		var err error
		user, err = s.db.GetUserByEmail(r.Context(), tx, userInfo.Email)
		return err
	})
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to create user: %w", err))
		return
	}

	// 5. Issue our own token.
	appToken, err := s.issueToken(user)
	if err != nil {
		s.errorJSON(w, err)
		return
	}

	// 6. Hand the token to the dashboard's callback page.
	redirectURL := fmt.Sprintf("%s/auth/callback?token=%s", strings.TrimRight(s.config.FrontendURL, "/"), url.QueryEscape(appToken))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
