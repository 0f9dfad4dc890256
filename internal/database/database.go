package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite" // The pure Go SQLite driver
)

// sqlitePragmas are appended to every DSN. Foreign keys keep League -> Country
// and snapshot -> entity references honest; busy_timeout lets readers wait out
// a concurrent writer instead of failing with SQLITE_BUSY.
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Store names used for the per-file write mutexes.
const (
	StatsStore = "stats"
	AuthStore  = "auth"
)

// Service is the central struct for managing all database interactions.
// It holds the statistics database (players, teams, leagues, snapshots and
// cached external matches) and the users database, and serialises writes to
// each file through its own mutex.
type Service struct {
	statsDB *sql.DB
	authDB  *sql.DB
	logger  *slog.Logger

	dbMutexes   map[string]*sync.Mutex
	serviceLock sync.Mutex
}

// NewService opens both database files and verifies the connections.
func NewService(statsDbPath, authDbPath string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	statsDB, err := open(statsDbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open stats database: %w", err)
	}

	authDB, err := open(authDbPath)
	if err != nil {
		statsDB.Close()
		return nil, fmt.Errorf("could not open auth database: %w", err)
	}

	return &Service{
		statsDB: statsDB,
		authDB:  authDB,
		logger:  logger,
		dbMutexes: map[string]*sync.Mutex{
			StatsStore: {},
			AuthStore:  {},
		},
	}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// getMutex retrieves the write mutex for a store.
func (s *Service) getMutex(store string) *sync.Mutex {
	s.serviceLock.Lock()
	defer s.serviceLock.Unlock()

	if _, ok := s.dbMutexes[store]; !ok {
		s.dbMutexes[store] = &sync.Mutex{}
	}
	return s.dbMutexes[store]
}

// write runs writeFunc inside a transaction on db while holding the store's
// mutex, so read-then-write sequences inside writeFunc are atomic with
// respect to every other writer in this process.
func (s *Service) write(ctx context.Context, store string, db *sql.DB, writeFunc func(tx *sql.Tx) error) error {
	mutex := s.getMutex(store)
	mutex.Lock()
	defer mutex.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := writeFunc(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// WriteToStatsDB executes a write operation on the statistics database within
// a serialised transaction.
func (s *Service) WriteToStatsDB(ctx context.Context, writeFunc func(tx *sql.Tx) error) error {
	return s.write(ctx, StatsStore, s.statsDB, writeFunc)
}

// WriteToAuthDB executes a write operation on the users database within a
// serialised transaction.
func (s *Service) WriteToAuthDB(ctx context.Context, writeFunc func(tx *sql.Tx) error) error {
	return s.write(ctx, AuthStore, s.authDB, writeFunc)
}

// StatsDB provides a direct connection to the statistics database for reads.
func (s *Service) StatsDB() *sql.DB {
	return s.statsDB
}

// AuthDB provides a direct connection to the users database for reads.
func (s *Service) AuthDB() *sql.DB {
	return s.authDB
}

// Ping checks both databases and reports the first failure per store.
func (s *Service) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		StatsStore: s.statsDB.PingContext(ctx),
		AuthStore:  s.authDB.PingContext(ctx),
	}
}

// Close closes both database connections.
func (s *Service) Close() error {
	s.serviceLock.Lock()
	defer s.serviceLock.Unlock()

	err := errors.Join(s.statsDB.Close(), s.authDB.Close())
	s.logger.Info("All database connections closed")
	return err
}
