package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/bench"
	"github.com/droverhq/drover/internal/budget"
	"github.com/droverhq/drover/internal/tooling"
)

var coordinatorTracer trace.Tracer = otel.Tracer("drover/internal/agent/core")

// Evaluator decides the next step of a task run.
type Evaluator interface {
	DecideNextStep(ctx context.Context, task Task, history string, snapshot Snapshot, previous string) (string, error)
}

// Worker carries out one instruction and returns its captured output.
type Worker interface {
	Run(ctx context.Context, task Task, instruction string) (string, error)
}

// WorkerFactory builds the fresh executor for one turn.
type WorkerFactory func(turn int) Worker

// Coordinator drives one task through the turn state machine:
// INIT, then bounded TURNs, then DONE with one of three outcomes. Success
// and max_turns are normal terminations; only planner failures and
// rate-limit conditions surface as errors, the latter so the task-level
// retry can sleep and re-run the whole coordinator.
type Coordinator struct {
	evaluator  Evaluator
	workers    WorkerFactory
	dispatcher *Dispatcher
	extractor  *Extractor
	profile    tooling.Profile
	actions    *ActionLogger
	limits     budget.Limits
	clearState bool
	telemetry  *telemetry.Telemetry
	logger     *log.Logger
}

// NewCoordinator wires a coordinator for one task run. extractor may be nil
// when context extraction is disabled or unsupported by the profile.
func NewCoordinator(evaluator Evaluator, workers WorkerFactory, dispatcher *Dispatcher, extractor *Extractor, profile tooling.Profile, actions *ActionLogger, limits budget.Limits, clearState bool, tele *telemetry.Telemetry) *Coordinator {
	return &Coordinator{
		evaluator:  evaluator,
		workers:    workers,
		dispatcher: dispatcher,
		extractor:  extractor,
		profile:    profile,
		actions:    actions,
		limits:     limits,
		clearState: clearState,
		telemetry:  tele,
		logger:     log.New(log.Writer(), "[COORDINATOR] ", log.LstdFlags),
	}
}

// Run drives the task to a terminal outcome. The returned error is non-nil
// only for hard failures (planner model failure, rate limiting); max_turns
// is a distinct, non-error outcome callers must tell apart from success.
func (c *Coordinator) Run(ctx context.Context, task Task) (Result, error) {
	ctx, span := coordinatorTracer.Start(ctx, "coordinator.run",
		trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer span.End()

	result := Result{TaskID: task.ID, StartedAt: time.Now()}
	snapshot := Snapshot{Values: map[string]interface{}{}}

	// INIT: baseline state is best-effort; an empty snapshot is valid and
	// the loop proceeds regardless.
	if c.clearState && c.profile.InitClearTool != "" {
		if _, err := c.dispatcher.Call(ctx, c.profile.InitClearTool, nil); err != nil {
			c.logger.Printf("init state reset failed: %v", err)
		}
	}
	c.refreshSnapshot(ctx, snapshot)
	if c.extractor != nil {
		snapshot.Context = c.extractor.Extract(ctx, task)
		c.logger.Printf("context: %s", snapshot.Context)
	}

	var history []TurnRecord
	previous := ""
	success := false
	finalNote := ""
	turnsUsed := 0

	for turn := 1; turn <= c.limits.MaxTurns; turn++ {
		turnsUsed = turn
		turnStart := time.Now()
		turnCtx, turnSpan := coordinatorTracer.Start(ctx, "coordinator.turn",
			trace.WithAttributes(attribute.Int("turn", turn)))

		c.actions.Clear()
		c.refreshSnapshot(turnCtx, snapshot)

		raw, err := c.evaluator.DecideNextStep(turnCtx, task, renderHistory(recordWindow(history, c.limits.HistoryWindow)), snapshot, previous)
		if err != nil {
			turnSpan.End()
			result.History = history
			result.Turns = turn
			result.Outcome = OutcomeError
			result.FinalNote = err.Error()
			result.FinishedAt = time.Now()
			span.SetAttributes(attribute.String("task.outcome", result.Outcome))
			return result, fmt.Errorf("turn %d: %w", turn, err)
		}
		previous = raw
		decision := ParseDecision(raw)
		c.logger.Printf("turn %d/%d decision=%s", turn, c.limits.MaxTurns, decision.Decision)
		if decision.Thought != "" {
			c.logger.Printf("thought: %s", decision.Thought)
		}

		if decision.Decision == DecisionFinish {
			// The terminal turn's instruction is never executed.
			turnSpan.End()
			success = true
			finalNote = "planner declared the task finished"
			break
		}

		worker := c.workers(turn)
		output, err := worker.Run(turnCtx, task, decision.Instruction)
		record := TurnRecord{Turn: turn, Instruction: decision.Instruction, At: time.Now()}
		if err != nil {
			if bench.IsRateLimited(err) {
				turnSpan.End()
				result.History = history
				result.Turns = turn
				result.Outcome = OutcomeError
				result.FinalNote = err.Error()
				result.FinishedAt = time.Now()
				span.SetAttributes(attribute.String("task.outcome", result.Outcome))
				return result, fmt.Errorf("turn %d: %w", turn, err)
			}
			// Soft failure: the turn is recorded as an error entry and the
			// loop continues.
			record.Output = softFailureEntry(output, err)
			record.SoftFailure = true
			record.Interactions = c.actions.Drain()
			history = append(history, record)
			c.telemetry.RecordTurnEvent(turnCtx, telemetry.TurnEvent{
				TaskID: task.ID, Turn: turn, Decision: decision.Decision,
				SoftFailure: true, Duration: time.Since(turnStart),
			})
			c.logger.Printf("turn %d executor failed, continuing: %v", turn, err)
			turnSpan.End()
			continue
		}

		record.Output = output
		record.Interactions = c.actions.Drain()
		history = append(history, record)
		c.telemetry.RecordTurnEvent(turnCtx, telemetry.TurnEvent{
			TaskID: task.ID, Turn: turn, Decision: decision.Decision,
			Duration: time.Since(turnStart),
		})
		turnSpan.End()

		if c.dispatcher.Completed() || tooling.SignalsCompletion(output, c.dispatcher.Registry().Terminal().Endpoint) {
			success = true
			finalNote = "terminal action confirmed"
			break
		}
	}

	result.History = history
	result.Turns = turnsUsed
	result.Completed = c.dispatcher.Completed()
	result.FinishedAt = time.Now()
	if success {
		result.Outcome = OutcomeSuccess
		result.FinalNote = finalNote
	} else {
		result.Outcome = OutcomeMaxTurns
		result.FinalNote = fmt.Sprintf("turn budget of %d exhausted without completion", c.limits.MaxTurns)
	}
	span.SetAttributes(
		attribute.String("task.outcome", result.Outcome),
		attribute.Int("task.turns", result.Turns),
	)
	c.logger.Printf("task %s done: %s after %d turns", task.ID, result.Outcome, result.Turns)
	return result, nil
}

// refreshSnapshot re-reads the profile's live state tools once per turn.
// A fetch failure becomes an {error} value in the snapshot rather than
// aborting the turn.
func (c *Coordinator) refreshSnapshot(ctx context.Context, snapshot Snapshot) {
	for _, name := range c.profile.SnapshotTools {
		value, err := c.dispatcher.Call(ctx, name, nil)
		if err != nil {
			value = map[string]interface{}{"error": err.Error()}
		}
		snapshot.Values[name] = value
	}
}

func softFailureEntry(output string, err error) string {
	if output == "" {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return fmt.Sprintf("%s\nERROR: %v", output, err)
}
