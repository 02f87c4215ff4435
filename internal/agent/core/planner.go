package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/budget"
	"github.com/droverhq/drover/provider"
)

// Planner decides the next step of a task run. It holds no memory of its
// own: every call re-sends the trailing history window, the current
// environment snapshot and its previous raw output, so the planner can
// self-reference without external state.
type Planner struct {
	provider    provider.Provider
	model       string
	temperature float64
	granularity string
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

// NewPlanner creates a planner on the given model. granularity selects the
// step-sizing policy given to the model: single-step or combined.
func NewPlanner(prov provider.Provider, model string, temperature float64, granularity string, tele *telemetry.Telemetry) *Planner {
	return &Planner{
		provider:    prov,
		model:       model,
		temperature: temperature,
		granularity: granularity,
		telemetry:   tele,
		logger:      log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// DecideNextStep asks the model for the next THOUGHT/DECISION/INSTRUCTION
// block and returns the raw text. A model failure is fatal for the turn and
// propagates to the coordinator; the planner itself never retries.
func (p *Planner) DecideNextStep(ctx context.Context, task Task, history string, snapshot Snapshot, previous string) (string, error) {
	stepRule := plannerStepRuleSingle
	if p.granularity == budget.GranularityCombined {
		stepRule = plannerStepRuleCombined
	}
	messages := []provider.Message{
		{Role: "system", Content: fmt.Sprintf(plannerSystemTemplate, stepRule)},
		{Role: "user", Content: buildPlannerUser(task, history, snapshot, previous)},
	}

	start := time.Now()
	response, err := p.provider.Chat(ctx, p.model, messages, map[string]interface{}{
		"temperature": p.temperature,
	})
	p.telemetry.RecordLLMCall(ctx, "planner", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("planner model call: %w", err)
	}

	p.logger.Printf("decided in %v", time.Since(start))
	return response, nil
}

func buildPlannerUser(task Task, history string, snapshot Snapshot, previous string) string {
	if history == "" {
		history = "No turns have run yet."
	}
	context := snapshot.Context
	if context == "" {
		context = "(none)"
	}
	if previous == "" {
		previous = "(this is the first turn)"
	}
	return fmt.Sprintf(plannerUserTemplate,
		task.Text, renderSnapshot(snapshot), context, history, previous)
}

func renderSnapshot(snapshot Snapshot) string {
	if len(snapshot.Values) == 0 {
		return "(empty)"
	}
	b, err := json.MarshalIndent(snapshot.Values, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", snapshot.Values)
	}
	return string(b)
}

// renderHistory formats turn records for the planner's context window.
func renderHistory(records []TurnRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "TURN %d INSTRUCTION:\n%s\n", r.Turn, r.Instruction)
		fmt.Fprintf(&b, "TURN %d EXECUTOR OUTPUT:\n%s\n", r.Turn, r.Output)
		if r.Interactions != "" {
			fmt.Fprintf(&b, "TURN %d API INTERACTIONS:\n%s\n", r.Turn, r.Interactions)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// recordWindow bounds the history shown to the planner. The window counts
// entries, two per turn (instruction and output); older turns stay in the
// full history for audit only.
func recordWindow(history []TurnRecord, entries int) []TurnRecord {
	if entries <= 0 {
		entries = 4
	}
	turns := entries / 2
	if turns < 1 {
		turns = 1
	}
	if len(history) <= turns {
		return history
	}
	return history[len(history)-turns:]
}
