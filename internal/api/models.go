package api

import (
	"encoding/json"
	"time"

	"github.com/intermernet/sportstats/internal/database"
)

// UserResponse is the DTO for a user's public profile. The password hash
// never leaves the server.
type UserResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// toUserResponse converts the database model into the public DTO.
func toUserResponse(user *database.User) UserResponse {
	return UserResponse{
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

// SavedMatchResponse is the DTO for a cached external match. Nullable
// columns come back as a value or `null`.
type SavedMatchResponse struct {
	ID          int64           `json:"id"`
	ExternalID  string          `json:"externalId"`
	Competition *string         `json:"competition"`
	HomeTeam    *string         `json:"homeTeam"`
	AwayTeam    *string         `json:"awayTeam"`
	HomeScore   *int64          `json:"homeScore"`
	AwayScore   *int64          `json:"awayScore"`
	Status      *string         `json:"status"`
	UtcDate     *string         `json:"utcDate"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	SavedAt     string          `json:"savedAt"`
}

func toSavedMatchResponse(m *database.ExternalMatch) SavedMatchResponse {
	return SavedMatchResponse{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		Competition: nullableString(m.Competition.String, m.Competition.Valid),
		HomeTeam:    nullableString(m.HomeTeam.String, m.HomeTeam.Valid),
		AwayTeam:    nullableString(m.AwayTeam.String, m.AwayTeam.Valid),
		HomeScore:   nullableInt(m.HomeScore.Int64, m.HomeScore.Valid),
		AwayScore:   nullableInt(m.AwayScore.Int64, m.AwayScore.Valid),
		Status:      nullableString(m.Status.String, m.Status.Valid),
		UtcDate:     nullableString(m.UtcDate.String, m.UtcDate.Valid),
		Raw:         m.Raw,
		SavedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toSavedMatchResponseList is a helper to convert a slice of cached matches.
func toSavedMatchResponseList(matches []*database.ExternalMatch) []SavedMatchResponse {
	responseList := make([]SavedMatchResponse, len(matches))
	for i, m := range matches {
		responseList[i] = toSavedMatchResponse(m)
	}
	return responseList
}

func nullableString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}

func nullableInt(n int64, valid bool) *int64 {
	if !valid {
		return nil
	}
	return &n
}
