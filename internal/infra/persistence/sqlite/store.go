// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory store for workflow semantics and snapshots the full state to a
// single table as JSON payloads after every successful write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"clinicore/internal/infra/persistence/memory"
	"clinicore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store and
// hydrates it from any existing snapshot at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "clinicore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"validations", "rules", "results", "quality_metrics"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var target any
		switch bucket {
		case "validations":
			target = &snapshot.Validations
		case "rules":
			target = &snapshot.Rules
		case "results":
			target = &snapshot.Results
		case "quality_metrics":
			target = &snapshot.Metrics
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		loaded = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "validations":
			data, err = json.Marshal(snapshot.Validations)
		case "rules":
			data, err = json.Marshal(snapshot.Rules)
		case "results":
			data, err = json.Marshal(snapshot.Results)
		case "quality_metrics":
			data, err = json.Marshal(snapshot.Metrics)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// CreateValidation persists a new pending validation and snapshots state.
func (s *Store) CreateValidation(ctx context.Context, validation domain.Validation) (domain.Validation, error) {
	created, err := s.Store.CreateValidation(ctx, validation)
	if err != nil {
		return created, err
	}
	if pErr := s.persist(); pErr != nil {
		return created, pErr
	}
	return created, nil
}

// CompleteValidation applies the mutator and snapshots state on success.
func (s *Store) CompleteValidation(ctx context.Context, id string, mutate func(*domain.Validation) error) (domain.Validation, error) {
	updated, err := s.Store.CompleteValidation(ctx, id, mutate)
	if err != nil {
		return updated, err
	}
	if pErr := s.persist(); pErr != nil {
		return updated, pErr
	}
	return updated, nil
}

// PutRule upserts a rule definition and snapshots state.
func (s *Store) PutRule(ctx context.Context, rule domain.ValidationRule) (domain.ValidationRule, error) {
	stored, err := s.Store.PutRule(ctx, rule)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// AppendResult persists a rule evaluation result and snapshots state.
func (s *Store) AppendResult(ctx context.Context, result domain.ValidationResult) (domain.ValidationResult, error) {
	stored, err := s.Store.AppendResult(ctx, result)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// AppendQualityMetric persists a quality metric and snapshots state.
func (s *Store) AppendQualityMetric(ctx context.Context, metric domain.QualityMetric) (domain.QualityMetric, error) {
	stored, err := s.Store.AppendQualityMetric(ctx, metric)
	if err != nil {
		return stored, err
	}
	if pErr := s.persist(); pErr != nil {
		return stored, pErr
	}
	return stored, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
