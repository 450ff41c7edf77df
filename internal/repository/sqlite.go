package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/negarena/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS archived_sessions (
			session_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT,
			status TEXT NOT NULL,
			current_step INTEGER NOT NULL,
			total_steps INTEGER,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			ended_at DATETIME,
			error TEXT,
			result TEXT,
			cells TEXT,
			leaderboard TEXT,
			archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archived_sessions_ended ON archived_sessions(ended_at)`,
		`CREATE TABLE IF NOT EXISTS archived_events (
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (session_id, step),
			FOREIGN KEY (session_id) REFERENCES archived_sessions(session_id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores snap and its events in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	result, err := marshalNullable(snap.Result)
	if err != nil {
		return err
	}
	cells, err := marshalNullable(snap.Cells)
	if err != nil {
		return err
	}
	leaderboard, err := marshalNullable(snap.Leaderboard)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM archived_events WHERE session_id = ?`, snap.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO archived_sessions
			(session_id, kind, name, status, current_step, total_steps, created_at, started_at, ended_at, error, result, cells, leaderboard, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Kind, nullString(snap.Name), snap.Status, snap.CurrentStep, nullInt(snap.TotalSteps),
		snap.CreatedAt, nullTime(snap.StartedAt), nullTime(snap.EndedAt), nullString(snap.Error),
		result, cells, leaderboard, time.Now())
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO archived_events (session_id, step, kind, ts, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range snap.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %d: %w", ev.Step, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.ID, ev.Step, ev.Kind, ev.Ts, string(payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSnapshot retrieves an archived snapshot with all of its events.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	snap := domain.Snapshot{Final: true, Events: []domain.Event{}}
	var (
		name, errMsg               sql.NullString
		result, cells, leaderboard sql.NullString
		totalSteps                 sql.NullInt64
		startedAt, endedAt         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, kind, name, status, current_step, total_steps, created_at, started_at, ended_at, error, result, cells, leaderboard
			FROM archived_sessions WHERE session_id = ?`, id).
		Scan(&snap.ID, &snap.Kind, &name, &snap.Status, &snap.CurrentStep, &totalSteps, &snap.CreatedAt,
			&startedAt, &endedAt, &errMsg, &result, &cells, &leaderboard)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap.Name = name.String
	snap.Error = errMsg.String
	snap.TotalSteps = intPtr(totalSteps)
	snap.StartedAt = timePtr(startedAt)
	snap.EndedAt = timePtr(endedAt)
	if err := unmarshalNullable(result, &snap.Result); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(cells, &snap.Cells); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(leaderboard, &snap.Leaderboard); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM archived_events WHERE session_id = ? ORDER BY step ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode archived event: %w", err)
		}
		snap.Events = append(snap.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns archived sessions, most recently ended first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	query := `SELECT session_id, kind, name, status, current_step, total_steps, created_at, ended_at, error
		FROM archived_sessions ORDER BY ended_at DESC, session_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var (
			sum          domain.SessionSummary
			name, errMsg sql.NullString
			totalSteps   sql.NullInt64
			endedAt      sql.NullTime
		)
		if err := rows.Scan(&sum.ID, &sum.Kind, &name, &sum.Status, &sum.CurrentStep, &totalSteps,
			&sum.CreatedAt, &endedAt, &errMsg); err != nil {
			return nil, err
		}
		sum.Name = name.String
		sum.Error = errMsg.String
		sum.TotalSteps = intPtr(totalSteps)
		sum.EndedAt = timePtr(endedAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func marshalNullable(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable(ns sql.NullString, v any) error {
	if !ns.Valid {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
