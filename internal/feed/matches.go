package feed

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/intermernet/sportstats/internal/database"
)

// ErrNoMatches is returned when a payload carries no match list.
var ErrNoMatches = errors.New("no matches in payload")

// Match is the subset of a feed match that is indexed in the cache.
type Match struct {
	ID          json.Number `json:"id"`
	UtcDate     string      `json:"utcDate"`
	Status      string      `json:"status"`
	Competition struct {
		Name string `json:"name"`
	} `json:"competition"`
	HomeTeam struct {
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		Name string `json:"name"`
	} `json:"awayTeam"`
	Score struct {
		FullTime struct {
			Home *int64 `json:"home"`
			Away *int64 `json:"away"`
		} `json:"fullTime"`
	} `json:"score"`
}

// SplitMatches extracts the individual match objects from a payload.
// It accepts a bare array, a feed response {"matches": [...]}, or a feed
// response wrapped once more as {"matches": {"matches": [...]}}, which is
// what dashboards post back after fetching.
func SplitMatches(payload json.RawMessage) ([]json.RawMessage, error) {
	for depth := 0; depth < 3; depth++ {
		payload = bytes.TrimSpace(payload)
		if len(payload) == 0 || string(payload) == "null" {
			return nil, ErrNoMatches
		}

		switch payload[0] {
		case '[':
			var items []json.RawMessage
			if err := json.Unmarshal(payload, &items); err != nil {
				return nil, fmt.Errorf("%w: decode match list: %v", ErrNoMatches, err)
			}
			return items, nil
		case '{':
			var wrapper struct {
				Matches json.RawMessage `json:"matches"`
			}
			if err := json.Unmarshal(payload, &wrapper); err != nil {
				return nil, fmt.Errorf("%w: decode match payload: %v", ErrNoMatches, err)
			}
			payload = wrapper.Matches
		default:
			return nil, ErrNoMatches
		}
	}
	return nil, ErrNoMatches
}

// ToRecord converts one raw feed match into a cache row. The raw JSON is
// kept verbatim.
func ToRecord(raw json.RawMessage) (*database.ExternalMatch, error) {
	var m Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	id := strings.TrimSpace(m.ID.String())
	if id == "" {
		return nil, errors.New("match has no id")
	}

	rec := &database.ExternalMatch{
		ExternalID:  id,
		Competition: nullString(m.Competition.Name),
		HomeTeam:    nullString(m.HomeTeam.Name),
		AwayTeam:    nullString(m.AwayTeam.Name),
		Status:      nullString(m.Status),
		UtcDate:     nullString(m.UtcDate),
		Raw:         raw,
	}
	if h := m.Score.FullTime.Home; h != nil {
		rec.HomeScore = sql.NullInt64{Int64: *h, Valid: true}
	}
	if a := m.Score.FullTime.Away; a != nil {
		rec.AwayScore = sql.NullInt64{Int64: *a, Valid: true}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveResult summarises an import. Saved counts newly cached matches;
// duplicates are counted in Total but not in Saved.
type SaveResult struct {
	Saved  int      `json:"saved"`
	Total  int      `json:"total"`
	Errors []string `json:"errors,omitempty"`
}

// SaveMatches caches every match in payload that is not cached yet. A bad
// item is reported in Errors and does not stop the others.
func SaveMatches(ctx context.Context, db *database.Service, payload json.RawMessage) (*SaveResult, error) {
	items, err := SplitMatches(payload)
	if err != nil {
		return nil, err
	}

	res := &SaveResult{Total: len(items)}
	err = db.WriteToStatsDB(ctx, func(tx *sql.Tx) error {
		for i, raw := range items {
			rec, err := ToRecord(raw)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("match %d: %v", i, err))
				continue
			}
			saved, err := db.SaveExternalMatch(ctx, tx, rec)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("match %s: %v", rec.ExternalID, err))
				continue
			}
			if saved {
				res.Saved++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
