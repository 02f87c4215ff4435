package core

import "time"

// Task is one benchmark assignment, immutable for the duration of a run.
type Task struct {
	ID   string `json:"task_id"`
	Text string `json:"text"`
}

// Terminal outcomes of a task run. MaxTurns is not an error: the loop ran
// out of budget without a completion signal.
const (
	OutcomeSuccess  = "success"
	OutcomeMaxTurns = "max_turns"
	OutcomeError    = "error"
)

// Decisions the planner can emit.
const (
	DecisionProceed = "PROCEED"
	DecisionFinish  = "FINISH"
)

// PlannerOutput is the parsed form of one planner reply. Raw always carries
// the full unparsed text so the next turn can self-reference it.
type PlannerOutput struct {
	Thought     string
	Decision    string
	Instruction string
	Raw         string
}

// TurnRecord is one entry of the task history: the instruction given to the
// executor, what came back, and the gateway interactions of that turn.
type TurnRecord struct {
	Turn         int       `json:"turn"`
	Instruction  string    `json:"instruction"`
	Output       string    `json:"output"`
	Interactions string    `json:"interactions"`
	SoftFailure  bool      `json:"soft_failure,omitempty"`
	At           time.Time `json:"at"`
}

// Snapshot is the environment state shown to the planner: live values from
// the profile's snapshot tools plus the extractor's condensed context.
type Snapshot struct {
	Values  map[string]interface{}
	Context string
}

// Result summarizes one coordinator run over a single task.
type Result struct {
	TaskID     string
	Outcome    string
	Turns      int
	Completed  bool
	FinalNote  string
	History    []TurnRecord
	StartedAt  time.Time
	FinishedAt time.Time
}
