// Package bench talks to the remote benchmark gateway: a request/response
// RPC surface keyed by endpoint paths, with an offset/limit/next_offset
// pagination convention and a session-scoped task lifecycle.
package bench

import "encoding/json"

// TaskInfo is one benchmark task as handed out by the gateway.
type TaskInfo struct {
	ID          string `json:"task_id"`
	Description string `json:"text"`
}

// Identity is the free-form actor context returned by /whoami (current user,
// locale, permissions). The harness treats it as opaque snapshot material.
type Identity map[string]interface{}

// Page is one slice of a paginated listing. NextOffset is nil, absent or -1
// when there are no further pages.
type Page struct {
	Items      []json.RawMessage `json:"items"`
	NextOffset *int              `json:"next_offset"`
}

// TaskScore is the per-task evaluation line of a session score.
type TaskScore struct {
	TaskID  string  `json:"task_id"`
	Points  float64 `json:"points"`
	Comment string  `json:"comment,omitempty"`
}

// Score is the session evaluation returned once all tasks are submitted.
type Score struct {
	Score    float64     `json:"score"`
	MaxScore float64     `json:"max_score"`
	Details  []TaskScore `json:"details,omitempty"`
}
