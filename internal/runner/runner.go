package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/droverhq/drover/config"
	core "github.com/droverhq/drover/internal/agent/core"
	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/bench"
	"github.com/droverhq/drover/internal/budget"
	"github.com/droverhq/drover/internal/store"
	"github.com/droverhq/drover/internal/tooling"
	"github.com/droverhq/drover/provider"
)

// Knowledge tool names shared by profiles that carry a document corpus.
const (
	knowledgeSearchTool = "search_wiki"
	knowledgeReadTool   = "read_wiki"
)

// sweepLockTTL bounds how long a crashed runner can hold a session lock.
const sweepLockTTL = 30 * time.Minute

// Runner drives one benchmark session end to end: it pulls the task list
// from the gateway, runs every task through a fresh agent pipeline, submits
// completions, and reports the final score. Postgres auditing and the redis
// sweep lock are both optional; without them the runner degrades to logs.
type Runner struct {
	cfg       config.Config
	client    *bench.Client
	provider  provider.Provider
	profile   tooling.Profile
	limits    budget.Limits
	store     *store.Store
	rdb       *redis.Client
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// New builds a runner from configuration, constructing the model provider
// from cfg.LLM.
func New(cfg config.Config, tele *telemetry.Telemetry) (*Runner, error) {
	prov, err := core.NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return NewWithProvider(cfg, prov, tele)
}

// NewWithProvider builds a runner around an existing model provider.
func NewWithProvider(cfg config.Config, prov provider.Provider, tele *telemetry.Telemetry) (*Runner, error) {
	profile, err := tooling.ProfileByName(cfg.Run.Profile)
	if err != nil {
		return nil, err
	}
	budgetCfg := budget.FromValues(cfg.Run.MaxTurns, cfg.Run.MaxStepsPerTurn, cfg.Run.HistoryWindow, cfg.Run.TaskAttempts, cfg.Run.RetryBackoff, cfg.Run.TurnGranularity)
	if err := budgetCfg.Validate(); err != nil {
		return nil, fmt.Errorf("run budget: %w", err)
	}

	r := &Runner{
		cfg:       cfg,
		client:    bench.NewClient(cfg.Bench.BaseURL, cfg.Bench.APIKey, cfg.Bench.Timeout, cfg.Bench.Retries, cfg.Bench.Backoff),
		provider:  prov,
		profile:   profile,
		limits:    budgetCfg.Resolve(),
		telemetry: tele,
		logger:    log.New(log.Writer(), "[RUNNER] ", log.LstdFlags),
	}
	if cfg.Storage.Redis.Enabled {
		r.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}
	return r, nil
}

// Run executes the whole session sweep. It returns an error only for
// conditions that make the sweep itself impossible (unreachable gateway,
// lock held elsewhere); individual task failures are recorded and the sweep
// continues.
func (r *Runner) Run(ctx context.Context) error {
	identity, err := r.client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("resolving session identity: %w", err)
	}
	actor := identityActor(identity)
	r.logger.Printf("session actor: %s (profile %s, gateway %s)", actor, r.profile.Name, r.cfg.Bench.BaseURL)

	tasks, err := r.client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if len(tasks) == 0 {
		r.logger.Printf("gateway returned no tasks, nothing to do")
		return nil
	}
	r.logger.Printf("%d tasks queued", len(tasks))

	unlock, err := r.acquireSweepLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if r.cfg.Storage.Postgres.Enabled && r.store == nil {
		st, err := store.NewWithDSN(ctx, r.cfg.Storage.Postgres.DSN())
		if err != nil {
			r.logger.Printf("warn: audit store unavailable, continuing without persistence: %v", err)
		} else {
			r.store = st
			defer st.DB.Close()
		}
	}

	var sessionID string
	if r.store != nil {
		id, err := r.store.CreateSession(ctx, r.profile.Name, actor, r.cfg.Bench.BaseURL)
		if err != nil {
			r.logger.Printf("warn: recording session failed: %v", err)
		} else {
			sessionID = id
		}
	}

	succeeded := 0
	for i, info := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		task := core.Task{ID: info.ID, Text: info.Description}
		r.logger.Printf("task %d/%d %s: %s", i+1, len(tasks), task.ID, snippet(task.Text, 120))

		if err := r.client.StartTask(ctx, task.ID); err != nil {
			r.logger.Printf("warn: starting task %s failed, skipping: %v", task.ID, err)
			continue
		}

		started := time.Now()
		result, attempts := r.runTask(ctx, task)
		if result.Outcome == core.OutcomeSuccess {
			succeeded++
		}
		r.telemetry.RecordTaskEvent(ctx, telemetry.TaskEvent{
			TaskID:   task.ID,
			Outcome:  result.Outcome,
			Turns:    result.Turns,
			Attempts: attempts,
			Duration: time.Since(started),
			Error:    taskError(result),
		})

		if sessionID != "" {
			if _, err := r.store.SaveTaskRun(ctx, sessionID, task, attempts, result); err != nil {
				r.logger.Printf("warn: persisting task %s failed: %v", task.ID, err)
			}
		}

		if err := r.client.CompleteTask(ctx, task.ID); err != nil {
			r.logger.Printf("warn: completing task %s failed: %v", task.ID, err)
		}
		r.logger.Printf("task %s finished: outcome=%s turns=%d attempts=%d", task.ID, result.Outcome, result.Turns, attempts)
	}

	score, err := r.client.SessionScore(ctx)
	if err != nil {
		r.logger.Printf("warn: fetching session score failed: %v", err)
		r.finishSession(ctx, sessionID, len(tasks), succeeded, nil)
		return nil
	}
	r.logger.Printf("session score: %.2f / %.2f (%d/%d tasks succeeded)", score.Score, score.MaxScore, succeeded, len(tasks))
	for _, detail := range score.Details {
		if detail.Comment != "" {
			r.logger.Printf("  %s: %.2f (%s)", detail.TaskID, detail.Points, detail.Comment)
			continue
		}
		r.logger.Printf("  %s: %.2f", detail.TaskID, detail.Points)
	}
	raw, err := json.Marshal(score)
	if err != nil {
		raw = nil
	}
	r.finishSession(ctx, sessionID, len(tasks), succeeded, raw)
	return nil
}

// runTask runs one task through the coordinator, retrying the whole attempt
// when the failure was gateway rate limiting. Backoff grows linearly with
// the attempt number. Any other failure class is final for the task.
func (r *Runner) runTask(ctx context.Context, task core.Task) (core.Result, int) {
	var result core.Result
	var err error
	for attempt := 1; attempt <= r.limits.TaskAttempts; attempt++ {
		result, err = r.attempt(ctx, task)
		if err == nil {
			return result, attempt
		}
		if !bench.IsRateLimited(err) || attempt == r.limits.TaskAttempts {
			r.logger.Printf("task %s attempt %d failed: %v", task.ID, attempt, err)
			return result, attempt
		}
		pause := time.Duration(attempt) * r.limits.RetryBackoff
		r.logger.Printf("task %s attempt %d rate limited, retrying in %v", task.ID, attempt, pause)
		select {
		case <-ctx.Done():
			return result, attempt
		case <-time.After(pause):
		}
	}
	return result, r.limits.TaskAttempts
}

// attempt assembles a fresh pipeline for one coordinator run. Nothing is
// shared between attempts: a clean action log, completion latch and
// dispatcher every time.
func (r *Runner) attempt(ctx context.Context, task core.Task) (core.Result, error) {
	registry, err := r.profile.Registry()
	if err != nil {
		return core.Result{TaskID: task.ID, Outcome: core.OutcomeError, FinalNote: err.Error()}, err
	}
	actions := core.NewActionLogger()
	latch := &tooling.CompletionState{}
	dispatcher := core.NewDispatcher(r.client, registry, actions, latch, r.telemetry, bench.PageOptions{
		InitialLimit:  r.cfg.Bench.InitialPageLimit,
		RetryAttempts: r.cfg.Bench.PageRetryAttempts,
	})

	planner := core.NewPlanner(r.provider, r.cfg.LLM.ModelFor("planner"), r.cfg.LLM.Temperature, r.limits.TurnGranularity, r.telemetry)
	workers := func(turn int) core.Worker {
		return core.NewExecutor(r.provider, r.cfg.LLM.ModelFor("executor"), r.cfg.LLM.Temperature, dispatcher, r.profile.Description, r.limits.MaxStepsPerTurn, r.telemetry)
	}

	var extractor *core.Extractor
	if r.cfg.Run.ContextExtractor && hasKnowledgeTools(registry) {
		extractor, err = core.NewExtractor(r.provider, r.cfg.LLM.ModelFor("extractor"), dispatcher, knowledgeSearchTool, knowledgeReadTool, r.telemetry)
		if err != nil {
			return core.Result{TaskID: task.ID, Outcome: core.OutcomeError, FinalNote: err.Error()}, err
		}
	}

	clearState := r.cfg.Run.ClearBasket && r.profile.InitClearTool != ""
	coord := core.NewCoordinator(planner, workers, dispatcher, extractor, r.profile, actions, r.limits, clearState, r.telemetry)
	return coord.Run(ctx, task)
}

// acquireSweepLock takes the per-profile redis lock so concurrent replicas
// don't double-drive one benchmark session. The lock value is a holder token
// so a replica that outlives the TTL cannot release a successor's lock.
// Without redis the runner assumes it is the only instance. A redis outage
// degrades to the same assumption.
func (r *Runner) acquireSweepLock(ctx context.Context) (func(), error) {
	if r.rdb == nil {
		return func() {}, nil
	}
	lockKey := "sweep:lock:" + r.profile.Name
	holder := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, lockKey, holder, sweepLockTTL).Result()
	if err != nil {
		r.logger.Printf("warn: sweep lock unavailable, continuing unlocked: %v", err)
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("another runner holds %s", lockKey)
	}
	return func() {
		current, err := r.rdb.Get(context.Background(), lockKey).Result()
		if err != nil || current != holder {
			return
		}
		if err := r.rdb.Del(context.Background(), lockKey).Err(); err != nil {
			r.logger.Printf("warn: releasing sweep lock failed: %v", err)
		}
	}, nil
}

func (r *Runner) finishSession(ctx context.Context, sessionID string, total, succeeded int, score []byte) {
	if sessionID == "" {
		return
	}
	if err := r.store.FinishSession(ctx, sessionID, store.SessionStatusCompleted, total, succeeded, score); err != nil {
		r.logger.Printf("warn: closing session record failed: %v", err)
	}
}

// identityActor picks a human-readable actor label out of the free-form
// /whoami response.
func identityActor(identity bench.Identity) string {
	for _, key := range []string{"email", "username", "name", "user_id"} {
		if v, ok := identity[key].(string); ok && v != "" {
			return v
		}
	}
	return "unknown"
}

func hasKnowledgeTools(registry *tooling.Registry) bool {
	if _, ok := registry.Tool(knowledgeSearchTool); !ok {
		return false
	}
	_, ok := registry.Tool(knowledgeReadTool)
	return ok
}

func taskError(res core.Result) string {
	if res.Outcome == core.OutcomeError {
		return res.FinalNote
	}
	return ""
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
