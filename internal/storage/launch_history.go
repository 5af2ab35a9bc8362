package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

// LaunchRecord is one recorded launch attempt
type LaunchRecord struct {
	ID          string              `json:"id"`
	ProgramID   string              `json:"program_id"`
	Name        string              `json:"name"`
	Path        string              `json:"path"`
	Outcome     model.LaunchOutcome `json:"outcome"`
	Success     bool                `json:"success"`
	Reason      string              `json:"reason,omitempty"`
	PID         int32               `json:"pid,omitempty"`
	AttemptedAt time.Time           `json:"attempted_at"`
}

// RecordFromResult converts a launch result into a new history record
func RecordFromResult(result model.LaunchResult) *LaunchRecord {
	attempted := result.Timestamp
	if attempted.IsZero() {
		attempted = time.Now()
	}
	return &LaunchRecord{
		ID:          uuid.New().String(),
		ProgramID:   result.ProgramID,
		Name:        result.Name,
		Path:        result.Path,
		Outcome:     result.Outcome,
		Success:     result.Success,
		Reason:      result.Reason,
		PID:         result.PID,
		AttemptedAt: attempted,
	}
}

// Filter narrows List and Count. Zero fields match everything.
type Filter struct {
	ProgramID string
	Outcome   model.LaunchOutcome
	Since     time.Time
}

func (f Filter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.ProgramID != "" {
		clauses = append(clauses, "program_id = ?")
		args = append(args, f.ProgramID)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "attempted_at >= ?")
		args = append(args, f.Since.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// LaunchHistoryStorage defines the interface for launch history storage
type LaunchHistoryStorage interface {
	// Store stores a launch record
	Store(ctx context.Context, record *LaunchRecord) error

	// Get retrieves a launch record by ID
	Get(ctx context.Context, id string) (*LaunchRecord, error)

	// List retrieves launch records, newest first, with pagination and filters
	List(ctx context.Context, filter Filter, offset, limit int) ([]*LaunchRecord, error)

	// Count returns the total number of records matching the filter
	Count(ctx context.Context, filter Filter) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	// Close releases the underlying database
	Close() error
}

// SQLiteLaunchHistory implements LaunchHistoryStorage using SQLite
type SQLiteLaunchHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteLaunchHistory opens (or creates) the history database at dbPath
func NewSQLiteLaunchHistory(logger *zap.Logger, dbPath string) (*SQLiteLaunchHistory, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteLaunchHistory{
		logger: logger.Named("launch-history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteLaunchHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS launch_history (
			id TEXT PRIMARY KEY,
			program_id TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			outcome TEXT NOT NULL,
			success INTEGER NOT NULL,
			reason TEXT,
			pid INTEGER,
			attempted_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_launch_history_program_id ON launch_history(program_id);
		CREATE INDEX IF NOT EXISTS idx_launch_history_outcome ON launch_history(outcome);
		CREATE INDEX IF NOT EXISTS idx_launch_history_attempted_at ON launch_history(attempted_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements LaunchHistoryStorage.Store
func (s *SQLiteLaunchHistory) Store(ctx context.Context, record *LaunchRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.AttemptedAt.IsZero() {
		record.AttemptedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_history (
			id, program_id, name, path, outcome, success, reason, pid, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ProgramID,
		record.Name,
		record.Path,
		string(record.Outcome),
		record.Success,
		sql.NullString{String: record.Reason, Valid: record.Reason != ""},
		sql.NullInt64{Int64: int64(record.PID), Valid: record.PID != 0},
		record.AttemptedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store launch history: %w", err)
	}
	return nil
}

const selectColumns = "SELECT id, program_id, name, path, outcome, success, reason, pid, attempted_at FROM launch_history"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*LaunchRecord, error) {
	record := &LaunchRecord{}
	var outcome string
	var reason sql.NullString
	var pid sql.NullInt64

	err := row.Scan(
		&record.ID,
		&record.ProgramID,
		&record.Name,
		&record.Path,
		&outcome,
		&record.Success,
		&reason,
		&pid,
		&record.AttemptedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Outcome = model.LaunchOutcome(outcome)
	if reason.Valid {
		record.Reason = reason.String
	}
	if pid.Valid {
		record.PID = int32(pid.Int64)
	}
	return record, nil
}

// Get implements LaunchHistoryStorage.Get. A missing record is (nil, nil).
func (s *SQLiteLaunchHistory) Get(ctx context.Context, id string) (*LaunchRecord, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan launch history: %w", err)
	}
	return record, nil
}

// List implements LaunchHistoryStorage.List
func (s *SQLiteLaunchHistory) List(ctx context.Context, filter Filter, offset, limit int) ([]*LaunchRecord, error) {
	where, args := filter.where()
	query := selectColumns + where + " ORDER BY attempted_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list launch history: %w", err)
	}
	defer rows.Close()

	var records []*LaunchRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan launch history: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements LaunchHistoryStorage.Count
func (s *SQLiteLaunchHistory) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM launch_history"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count launch history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements LaunchHistoryStorage.DeleteBefore
func (s *SQLiteLaunchHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM launch_history WHERE attempted_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete launch history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old launch history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteLaunchHistory) Close() error {
	return s.db.Close()
}
