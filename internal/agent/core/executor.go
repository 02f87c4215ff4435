package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/tooling"
	"github.com/droverhq/drover/provider"
)

// Executor carries out exactly one instruction with a bounded number of
// tool calls. It is constructed fresh every turn: nothing crosses turns
// except through the history the coordinator keeps. All of its output is
// captured as one opaque transcript; the coordinator never inspects
// intermediate reasoning, only the final text and the action log.
type Executor struct {
	provider    provider.Provider
	model       string
	temperature float64
	dispatcher  *Dispatcher
	rules       string
	maxSteps    int
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

// NewExecutor creates a single-turn executor.
func NewExecutor(prov provider.Provider, model string, temperature float64, dispatcher *Dispatcher, rules string, maxSteps int, tele *telemetry.Telemetry) *Executor {
	if maxSteps <= 0 {
		maxSteps = 2
	}
	return &Executor{
		provider:    prov,
		model:       model,
		temperature: temperature,
		dispatcher:  dispatcher,
		rules:       rules,
		maxSteps:    maxSteps,
		telemetry:   tele,
		logger:      log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
	}
}

// Run executes the instruction and returns the captured transcript. The
// returned error is non-nil for model failures and for a terminal tool's
// hard failure; the transcript accumulated so far is returned either way.
func (e *Executor) Run(ctx context.Context, task Task, instruction string) (string, error) {
	system := fmt.Sprintf(executorSystemTemplate, e.rules, e.dispatcher.Registry().Catalog(), e.maxSteps)
	messages := []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf(executorUserTemplate, task.Text, instruction)},
	}

	var transcript strings.Builder
	for step := 1; step <= e.maxSteps; step++ {
		start := time.Now()
		reply, err := e.provider.Chat(ctx, e.model, messages, map[string]interface{}{
			"temperature": e.temperature,
		})
		e.telemetry.RecordLLMCall(ctx, "executor", time.Since(start), err)
		if err != nil {
			return strings.TrimSpace(transcript.String()), fmt.Errorf("executor model call: %w", err)
		}
		fmt.Fprintf(&transcript, "STEP %d: %s\n", step, strings.TrimSpace(reply))

		call, ok := parseToolCall(reply)
		if !ok || call.Final != "" || call.Tool == "" {
			// Free text or an explicit final report ends the pass.
			break
		}

		result, err := e.dispatcher.Call(ctx, call.Tool, call.Args)
		if err != nil {
			fmt.Fprintf(&transcript, "TOOL ERROR: %v\n", err)
			return strings.TrimSpace(transcript.String()), err
		}
		observation := compactJSON(result)
		fmt.Fprintf(&transcript, "OBSERVATION: %s\n", observation)

		if e.finishedTerminal(call.Tool, result) {
			transcript.WriteString(tooling.TaskFinishedMarker + "\n")
			break
		}

		messages = append(messages,
			provider.Message{Role: "assistant", Content: reply},
			provider.Message{Role: "user", Content: "OBSERVATION: " + observation},
		)
	}

	return strings.TrimSpace(transcript.String()), nil
}

type toolCall struct {
	Tool  string                 `json:"tool"`
	Args  map[string]interface{} `json:"args"`
	Final string                 `json:"final"`
}

func parseToolCall(reply string) (toolCall, bool) {
	raw := ExtractJSON(reply)
	if raw == "" {
		return toolCall{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return toolCall{}, false
	}
	return call, true
}

// finishedTerminal reports whether this call was the terminal tool
// succeeding right now, as opposed to an error value or a blocked repeat.
func (e *Executor) finishedTerminal(name string, result map[string]interface{}) bool {
	tc, ok := e.dispatcher.Registry().Tool(name)
	if !ok || tc.Kind != tooling.KindTerminal {
		return false
	}
	if _, failed := result["error"]; failed {
		return false
	}
	return e.dispatcher.Completed()
}
