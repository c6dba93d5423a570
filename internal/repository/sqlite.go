package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/arthurwhennig/asterix/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS extraction_sessions (
			id TEXT PRIMARY KEY,
			asteroid TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			status TEXT NOT NULL,
			progress REAL NOT NULL,
			error TEXT,
			snapshot BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS consequence_reports (
			session_id TEXT PRIMARY KEY,
			schema_version TEXT NOT NULL,
			report BLOB NOT NULL,
			calculated_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES extraction_sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_status ON extraction_sessions(status);
		CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON extraction_sessions(created_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession upserts the full session snapshot. The snapshot column holds
// the session as JSON so the row survives schema drift in nested structs.
func (s *SQLiteDB) SaveSession(ctx context.Context, sess *models.Session) error {
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("error marshaling session: %w", err)
	}

	query := `
		INSERT INTO extraction_sessions (id, asteroid, latitude, longitude, status, progress, error, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			error = excluded.error,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		sess.ID,
		sess.AsteroidName,
		sess.Latitude,
		sess.Longitude,
		string(sess.Status),
		sess.Progress,
		sess.Error,
		snapshot,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM extraction_sessions WHERE id = ?`, id,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session %s: %w", id, err)
	}

	var sess models.Session
	if err := json.Unmarshal(snapshot, &sess); err != nil {
		return nil, fmt.Errorf("error unmarshaling session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteDB) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM extraction_sessions WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking session %s: %w", id, err)
	}
	return exists, nil
}

func (s *SQLiteDB) ListSessions(ctx context.Context, opts Filter) ([]models.Session, error) {
	query := `SELECT snapshot FROM extraction_sessions WHERE 1=1`
	args := []any{}

	if opts.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*opts.Status))
	}
	if opts.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *opts.Since)
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("error scanning session row: %w", err)
		}
		var sess models.Session
		if err := json.Unmarshal(snapshot, &sess); err != nil {
			return nil, fmt.Errorf("error unmarshaling session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SaveReport stores the durable report for a completed session. Reports are
// immutable, so a second save for the same session is an error.
func (s *SQLiteDB) SaveReport(ctx context.Context, sessionID string, r *models.ConsequenceReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consequence_reports (session_id, schema_version, report, calculated_at) VALUES (?, ?, ?, ?)`,
		sessionID,
		r.SchemaVersion,
		body,
		r.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving report for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteDB) GetReport(ctx context.Context, sessionID string) (*models.ConsequenceReport, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM consequence_reports WHERE session_id = ?`, sessionID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying report for session %s: %w", sessionID, err)
	}

	var r models.ConsequenceReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("error unmarshaling report for session %s: %w", sessionID, err)
	}
	return &r, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
