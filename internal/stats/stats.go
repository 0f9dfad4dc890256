// Package stats is the fixed catalog of read queries served by the API.
// Each exported method is one named query over the statistics database.
// Composite methods fan out to independent branches and degrade a failing
// branch to its documented default instead of failing the whole result.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intermernet/sportstats/internal/database"
)

var (
	// ErrNotFound is returned by single-resource lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrUnknownView is returned when a view name is not in the catalog.
	ErrUnknownView = errors.New("unknown view")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	DefaultTopN     = 10
	MaxTopN         = 50
	SearchLimit     = 10
)

// DefaultQueryTimeout bounds one branch of a composite query when the
// caller does not configure a timeout.
const DefaultQueryTimeout = 5 * time.Second

// Service runs the query catalog against the statistics database.
type Service struct {
	db      *database.Service
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates a query service. timeout bounds every branch of a
// composite query.
func NewService(db *database.Service, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, timeout: timeout, logger: logger}
}

func (s *Service) conn() database.DBorTx {
	return s.db.StatsDB()
}

// branch is one independent leg of a composite query. It stores its own
// result and returns an error if that result should fall back to its default.
type branch func(ctx context.Context) error

// gather runs every branch concurrently, each under its own timeout, and
// waits for all of them. Branch failures never cancel siblings; they are
// logged and returned keyed by branch name.
func (s *Service) gather(ctx context.Context, op string, branches map[string]branch) map[string]error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make(map[string]error)
	)

	for name, run := range branches {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := run(bctx); err != nil {
				s.logger.Warn("composite query branch failed", "op", op, "branch", name, "error", err)
				mu.Lock()
				errs[name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// qualify prefixes each column of a comma separated list with a table alias.
func qualify(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

// ClampPage normalises pagination input: page >= 1, 1 <= limit <= MaxPageSize.
// page is capped so that (page-1)*limit cannot overflow.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if maxPage := math.MaxInt/limit + 1; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// ClampTopN normalises a top-N size to 1..MaxTopN.
func ClampTopN(n int) int {
	if n < 1 {
		return DefaultTopN
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}
