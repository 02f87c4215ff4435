package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	core "github.com/droverhq/drover/internal/agent/core"
)

func TestCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	query := regexp.QuoteMeta(`INSERT INTO sessions (profile, actor, base_url, status) VALUES ($1,$2,$3,$4) RETURNING id`)
	mock.ExpectQuery(query).
		WithArgs("storefront", "jo@example.com", "https://bench.example.com", SessionStatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))

	id, err := st.CreateSession(context.Background(), "storefront", "jo@example.com", "https://bench.example.com")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id != "sess-1" {
		t.Fatalf("unexpected id: %q", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	query := regexp.QuoteMeta(`
UPDATE sessions SET status=$2, tasks_total=$3, tasks_succeeded=$4, score=$5, finished_at=NOW()
WHERE id=$1
`)
	mock.ExpectExec(query).
		WithArgs("sess-1", SessionStatusCompleted, 12, 9, []byte(`{"total":0.75}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinishSession(context.Background(), "sess-1", SessionStatusCompleted, 12, 9, []byte(`{"total":0.75}`)); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery(`SELECT id, profile, actor, base_url`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile", "actor", "base_url", "status", "tasks_total", "tasks_succeeded", "score", "started_at", "finished_at"}))

	_, ok, err := st.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTaskRunTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	started := time.Now().Add(-time.Minute)
	finished := time.Now()
	res := core.Result{
		TaskID:    "task-7",
		Outcome:   core.OutcomeSuccess,
		Turns:     2,
		Completed: true,
		FinalNote: "terminal action confirmed",
		History: []core.TurnRecord{
			{Turn: 1, Instruction: "search", Output: "found it", Interactions: "[REQ -> /products/search] {}", At: started},
			{Turn: 2, Instruction: "checkout", Output: "order placed", Interactions: "[REQ -> /checkout] {}", SoftFailure: false, At: finished},
		},
		StartedAt:  started,
		FinishedAt: finished,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO task_runs (session_id, task_id, task_text, outcome, final_note, attempts, turns, completed, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id
`)).
		WithArgs("sess-1", "task-7", "Buy a keyboard.", core.OutcomeSuccess, "terminal action confirmed", 2, 2, true, started, finished).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-1"))

	turnInsert := regexp.QuoteMeta(`
INSERT INTO turns (task_run_id, turn, instruction, output, interactions, soft_failure, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`)
	mock.ExpectExec(turnInsert).
		WithArgs("run-1", 1, "search", "found it", "[REQ -> /products/search] {}", false, started).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(turnInsert).
		WithArgs("run-1", 2, "checkout", "order placed", "[REQ -> /checkout] {}", false, finished).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	id, err := st.SaveTaskRun(context.Background(), "sess-1", core.Task{ID: "task-7", Text: "Buy a keyboard."}, 2, res)
	if err != nil {
		t.Fatalf("SaveTaskRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("unexpected id: %q", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTaskRunRollsBackOnTurnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	res := core.Result{
		TaskID:     "task-7",
		Outcome:    core.OutcomeMaxTurns,
		Turns:      1,
		History:    []core.TurnRecord{{Turn: 1, Instruction: "search", Output: "nothing", Interactions: "x", At: now}},
		StartedAt:  now,
		FinishedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO task_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-1"))
	mock.ExpectExec(`INSERT INTO turns`).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	if _, err := st.SaveTaskRun(context.Background(), "sess-1", core.Task{ID: "task-7", Text: "t"}, 1, res); err == nil {
		t.Fatal("expected turn insert failure to surface")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTurns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT task_run_id, turn, instruction, output, interactions, soft_failure, created_at
FROM turns WHERE task_run_id=$1 ORDER BY turn
`)).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"task_run_id", "turn", "instruction", "output", "interactions", "soft_failure", "created_at"}).
			AddRow("run-1", 1, "search", "found it", "[REQ -> /products/search] {}", false, now).
			AddRow("run-1", 2, "retry", "ERROR: model timeout", "No API interactions recorded this turn.", true, now))

	turns, err := st.ListTurns(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if !turns[1].SoftFailure {
		t.Fatal("turn 2 should be a soft failure")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("jo@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", "$2a$10$hash"))

	id, hash, err := st.GetUserByEmail(context.Background(), "jo@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if id != "user-1" || hash != "$2a$10$hash" {
		t.Fatalf("unexpected row: %q %q", id, hash)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
