package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
)

// SQLStore implements Repository on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	driver  string
	writeMu sync.Mutex // serialises writes to avoid SQLITE_BUSY
	now     func() time.Time
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := strings.TrimSpace(cfg.DSN)
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "pitchmatch.db"
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		name TEXT NOT NULL,
		org TEXT NOT NULL DEFAULT '',
		statement TEXT NOT NULL,
		route TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_role ON candidates(role, created_at);

	CREATE TABLE IF NOT EXISTS match_sessions (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		statement TEXT NOT NULL,
		total_matched INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_records (
		session_id TEXT NOT NULL REFERENCES match_sessions(id) ON DELETE CASCADE,
		candidate_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		matched INTEGER NOT NULL,
		score INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (session_id, candidate_id)
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Candidates implements directory.Directory.
func (s *SQLStore) Candidates(ctx context.Context, role conversation.Role) ([]directory.Candidate, error) {
	query := s.rebind(`
		SELECT id, role, name, org, statement, route, avatar, updated_at
		FROM candidates WHERE role = ? ORDER BY created_at DESC, id`)

	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []directory.Candidate
	for rows.Next() {
		var c directory.Candidate
		var roleName string
		var updatedAt int64
		if err := rows.Scan(&c.ID, &roleName, &c.DisplayName, &c.OrgLabel, &c.Statement, &c.ContactRoute, &c.Avatar, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		c.Role = conversation.Role(roleName)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// UpsertCandidate creates or updates a candidate record.
func (s *SQLStore) UpsertCandidate(ctx context.Context, c directory.Candidate) error {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}

	query := s.rebind(`
	INSERT INTO candidates (id, role, name, org, statement, route, avatar, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		role = excluded.role,
		name = excluded.name,
		org = excluded.org,
		statement = excluded.statement,
		route = excluded.route,
		avatar = excluded.avatar,
		updated_at = excluded.updated_at`)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, query,
		c.ID, string(c.Role), c.DisplayName, c.OrgLabel, c.Statement, c.ContactRoute, c.Avatar, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	return nil
}

// DeleteCandidate removes a candidate by id.
func (s *SQLStore) DeleteCandidate(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM candidates WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSession stores the session and its ranked records in one transaction.
func (s *SQLStore) SaveSession(ctx context.Context, res *matching.Result) error {
	if res == nil || res.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
	INSERT INTO match_sessions (id, role, name, statement, total_matched, message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		total_matched = excluded.total_matched,
		message = excluded.message`),
		res.SessionID, string(res.Role), res.Name, res.Statement, res.TotalMatched, res.Message, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM match_records WHERE session_id = ?`), res.SessionID); err != nil {
		return fmt.Errorf("clear session records: %w", err)
	}

	insert := s.rebind(`
	INSERT INTO match_records (session_id, candidate_id, position, matched, score, payload)
	VALUES (?, ?, ?, ?, ?, ?)`)
	for i, rec := range res.Matches {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.CandidateID, err)
		}
		matched := 0
		if rec.Matched {
			matched = 1
		}
		if _, err := tx.ExecContext(ctx, insert, res.SessionID, rec.CandidateID, i, matched, rec.Score, string(payload)); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.CandidateID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Session loads a stored session with its records in ranked order.
func (s *SQLStore) Session(ctx context.Context, id string) (*matching.Result, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, role, name, statement, total_matched, message, created_at
		FROM match_sessions WHERE id = ?`), id)

	var res matching.Result
	var role string
	var createdAt int64
	err := row.Scan(&res.SessionID, &role, &res.Name, &res.Statement, &res.TotalMatched, &res.Message, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	res.Role = conversation.Role(role)
	res.CreatedAt = time.Unix(createdAt, 0)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT payload FROM match_records WHERE session_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	res.Matches = []matching.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		var rec matching.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		res.Matches = append(res.Matches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session records: %w", err)
	}
	return &res, nil
}
