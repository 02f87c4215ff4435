package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/droverhq/drover/config"
	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/runner"
)

// schedLockTTL guards against two replicas firing the same scheduled sweep.
const schedLockTTL = 2 * time.Minute

// Scheduler re-runs the configured benchmark session on a cron schedule so
// score drift shows up without an operator kicking off sweeps by hand. The
// runner's own sweep lock still applies on top of the scheduling lock.
type Scheduler struct {
	Cfg      config.Config
	Tele     *telemetry.Telemetry
	Rdb      *redis.Client
	Schedule string
	Stop     chan struct{}

	launch func(ctx context.Context) error
	logger *log.Logger

	mu   sync.Mutex
	last *time.Time
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SWEEP] ", log.LstdFlags)
	}
	if s.launch == nil {
		s.launch = func(ctx context.Context) error {
			r, err := runner.New(s.Cfg, s.Tele)
			if err != nil {
				return err
			}
			return r.Run(ctx)
		}
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if !isDue(s.Schedule, last) {
		return
	}

	ctx := context.Background()
	if s.Rdb != nil {
		lockKey := "sched:lock:sweep:" + s.Cfg.Run.Profile
		ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", schedLockTTL).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, lockKey)
	}

	now := time.Now()
	s.mu.Lock()
	s.last = &now
	s.mu.Unlock()

	go func() {
		s.logger.Printf("scheduled sweep starting (profile %s)", s.Cfg.Run.Profile)
		if err := s.launch(ctx); err != nil {
			s.logger.Printf("scheduled sweep failed: %v", err)
			return
		}
		s.logger.Printf("scheduled sweep finished")
	}()
}

// isDue reports whether the schedule fires now given the last sweep time.
// Supports "@daily", "@hourly" and standard 5-field cron expressions; an
// invalid expression degrades to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
