package server

import (
	"encoding/json"
	"time"
)

// AuthSignupRequest creates an operator account.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest exchanges credentials for a token.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the signed JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// SweepResponse is one benchmark session as exposed by the audit API.
type SweepResponse struct {
	ID             string          `json:"id"`
	Profile        string          `json:"profile"`
	Actor          string          `json:"actor"`
	BaseURL        string          `json:"base_url"`
	Status         string          `json:"status"`
	TasksTotal     int             `json:"tasks_total"`
	TasksSucceeded int             `json:"tasks_succeeded"`
	Score          json.RawMessage `json:"score,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// TaskRunResponse is one task run within a sweep.
type TaskRunResponse struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	TaskID     string     `json:"task_id"`
	TaskText   string     `json:"task_text"`
	Outcome    string     `json:"outcome"`
	FinalNote  string     `json:"final_note,omitempty"`
	Attempts   int        `json:"attempts"`
	Turns      int        `json:"turns"`
	Completed  bool       `json:"completed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TurnResponse is one turn of a task run, with its instruction, executor
// output and the recorded gateway interaction trail.
type TurnResponse struct {
	Turn         int       `json:"turn"`
	Instruction  string    `json:"instruction"`
	Output       string    `json:"output"`
	Interactions string    `json:"interactions"`
	SoftFailure  bool      `json:"soft_failure"`
	CreatedAt    time.Time `json:"created_at"`
}
