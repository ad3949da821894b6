package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/quailyquaily/taskwarden/risk"
)

// SQLiteArchive journals terminal approval requests to a sqlite database.
type SQLiteArchive struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteArchive(dsn string) (*SQLiteArchive, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	a := &SQLiteArchive{dsn: dsn}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLiteArchive) Store(ctx context.Context, req Request) error {
	if a == nil {
		return fmt.Errorf("nil archive")
	}
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if strings.TrimSpace(req.ID) == "" {
		return fmt.Errorf("missing request id")
	}
	if !req.Status.Terminal() {
		return fmt.Errorf("refusing to archive non-terminal request %s", req.ID)
	}

	factorsJSON, _ := json.Marshal(req.Assessment.Factors)

	_, err := a.db.ExecContext(ctx, `
INSERT OR REPLACE INTO approval_archive (
  id, description_redacted, status, notes,
  risk_level, risk_weight, factors_json,
  created_at_unix, expires_at_unix, resolved_at_unix
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, req.ID, Summarize(req.Description), string(req.Status), strings.TrimSpace(req.Notes),
		string(req.Assessment.Level), req.Assessment.Weight, string(factorsJSON),
		req.CreatedAt.Unix(), req.ExpiresAt.Unix(), nullTimeUnix(req.ResolvedAt),
	)
	return err
}

// Recent returns up to limit archived requests, newest first.
func (a *SQLiteArchive) Recent(ctx context.Context, limit int) ([]Request, error) {
	if a == nil {
		return nil, fmt.Errorf("nil archive")
	}
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, `
SELECT
  id, description_redacted, status, notes,
  risk_level, risk_weight, factors_json,
  created_at_unix, expires_at_unix, resolved_at_unix
FROM approval_archive
ORDER BY created_at_unix DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var (
			req            Request
			status         string
			riskLevel      string
			factorsJSON    string
			createdAtUnix  int64
			expiresAtUnix  int64
			resolvedAtUnix sql.NullInt64
		)
		if err := rows.Scan(
			&req.ID, &req.Description, &status, &req.Notes,
			&riskLevel, &req.Assessment.Weight, &factorsJSON,
			&createdAtUnix, &expiresAtUnix, &resolvedAtUnix,
		); err != nil {
			return nil, err
		}
		req.Status = Status(status)
		req.Assessment.Level = risk.Level(riskLevel)
		req.Assessment.Confidence = 1 - req.Assessment.Weight
		_ = json.Unmarshal([]byte(factorsJSON), &req.Assessment.Factors)
		req.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		req.ExpiresAt = time.Unix(expiresAtUnix, 0).UTC()
		if resolvedAtUnix.Valid {
			t := time.Unix(resolvedAtUnix.Int64, 0).UTC()
			req.ResolvedAt = &t
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *SQLiteArchive) open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", a.dsn)
	if err != nil {
		return err
	}
	a.db = db
	return a.migrate()
}

func (a *SQLiteArchive) ensureOpen() error {
	if a.db != nil {
		return nil
	}
	return a.open()
}

func (a *SQLiteArchive) migrate() error {
	if a.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := a.db.Exec(`
CREATE TABLE IF NOT EXISTS approval_archive (
  id TEXT PRIMARY KEY,
  description_redacted TEXT,
  status TEXT NOT NULL,
  notes TEXT,
  risk_level TEXT,
  risk_weight REAL,
  factors_json TEXT,
  created_at_unix INTEGER NOT NULL,
  expires_at_unix INTEGER NOT NULL,
  resolved_at_unix INTEGER
);
CREATE INDEX IF NOT EXISTS idx_approval_archive_status ON approval_archive(status);
`)
	return err
}

func nullTimeUnix(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}
