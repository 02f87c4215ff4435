package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	core "github.com/droverhq/drover/internal/agent/core"
)

// Store persists benchmark sessions and their task runs in Postgres.
type Store struct {
	DB *sql.DB
}

// Session statuses.
const (
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// SessionRecord is one benchmark session: a sweep over the task list.
type SessionRecord struct {
	ID             string
	Profile        string
	Actor          string
	BaseURL        string
	Status         string
	TasksTotal     int
	TasksSucceeded int
	Score          []byte
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// TaskRunRecord is the persisted outcome of one task within a session.
type TaskRunRecord struct {
	ID         string
	SessionID  string
	TaskID     string
	TaskText   string
	Outcome    string
	FinalNote  string
	Attempts   int
	Turns      int
	Completed  bool
	StartedAt  time.Time
	FinishedAt *time.Time
}

// TurnRow is one persisted turn of a task run, including its full
// instruction, executor output and gateway interaction trail.
type TurnRow struct {
	TaskRunID    string
	Turn         int
	Instruction  string
	Output       string
	Interactions string
	SoftFailure  bool
	CreatedAt    time.Time
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* variables.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Session operations
func (s *Store) CreateSession(ctx context.Context, profile, actor, baseURL string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO sessions (profile, actor, base_url, status) VALUES ($1,$2,$3,$4) RETURNING id`,
		profile, actor, baseURL, SessionStatusRunning).Scan(&id)
	return id, err
}

func (s *Store) FinishSession(ctx context.Context, id, status string, tasksTotal, tasksSucceeded int, score []byte) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE sessions SET status=$2, tasks_total=$3, tasks_succeeded=$4, score=$5, finished_at=NOW()
WHERE id=$1
`, id, status, tasksTotal, tasksSucceeded, score)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, bool, error) {
	var rec SessionRecord
	var finished sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
SELECT id, profile, actor, base_url, status, tasks_total, tasks_succeeded, score, started_at, finished_at
FROM sessions WHERE id=$1
`, id).Scan(&rec.ID, &rec.Profile, &rec.Actor, &rec.BaseURL, &rec.Status,
		&rec.TasksTotal, &rec.TasksSucceeded, &rec.Score, &rec.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return rec, true, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, profile, actor, base_url, status, tasks_total, tasks_succeeded, score, started_at, finished_at
FROM sessions ORDER BY started_at DESC LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Profile, &rec.Actor, &rec.BaseURL, &rec.Status,
			&rec.TasksTotal, &rec.TasksSucceeded, &rec.Score, &rec.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			rec.FinishedAt = &finished.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveTaskRun persists one finished task run with its full turn history in
// a single transaction.
func (s *Store) SaveTaskRun(ctx context.Context, sessionID string, task core.Task, attempts int, res core.Result) (string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx, `
INSERT INTO task_runs (session_id, task_id, task_text, outcome, final_note, attempts, turns, completed, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id
`, sessionID, task.ID, task.Text, res.Outcome, res.FinalNote, attempts, res.Turns, res.Completed, res.StartedAt, res.FinishedAt).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, turn := range res.History {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO turns (task_run_id, turn, instruction, output, interactions, soft_failure, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, id, turn.Turn, turn.Instruction, turn.Output, turn.Interactions, turn.SoftFailure, turn.At); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListTaskRuns(ctx context.Context, sessionID string) ([]TaskRunRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, task_id, task_text, outcome, final_note, attempts, turns, completed, started_at, finished_at
FROM task_runs WHERE session_id=$1 ORDER BY started_at
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRunRecord
	for rows.Next() {
		rec, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetTaskRun(ctx context.Context, id string) (TaskRunRecord, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, session_id, task_id, task_text, outcome, final_note, attempts, turns, completed, started_at, finished_at
FROM task_runs WHERE id=$1
`, id)
	rec, err := scanTaskRun(row)
	if err == sql.ErrNoRows {
		return TaskRunRecord{}, false, nil
	}
	if err != nil {
		return TaskRunRecord{}, false, err
	}
	return rec, true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTaskRun(row rowScanner) (TaskRunRecord, error) {
	var rec TaskRunRecord
	var finished sql.NullTime
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.TaskID, &rec.TaskText, &rec.Outcome,
		&rec.FinalNote, &rec.Attempts, &rec.Turns, &rec.Completed, &rec.StartedAt, &finished)
	if err != nil {
		return TaskRunRecord{}, err
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return rec, nil
}

func (s *Store) ListTurns(ctx context.Context, taskRunID string) ([]TurnRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT task_run_id, turn, instruction, output, interactions, soft_failure, created_at
FROM turns WHERE task_run_id=$1 ORDER BY turn
`, taskRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TurnRow
	for rows.Next() {
		var row TurnRow
		if err := rows.Scan(&row.TaskRunID, &row.Turn, &row.Instruction, &row.Output,
			&row.Interactions, &row.SoftFailure, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
