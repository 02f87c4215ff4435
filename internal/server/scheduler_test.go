package server

import (
	"context"
	"io"
	"log"
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	hourAgo := time.Now().Add(-61 * time.Minute)
	halfHourAgo := time.Now().Add(-30 * time.Minute)
	dayPlusAgo := time.Now().Add(-25 * time.Hour)
	twoDaysAgo := time.Now().Add(-48 * time.Hour)

	cases := []struct {
		name string
		spec string
		last *time.Time
		want bool
	}{
		{"daily first run", "@daily", nil, true},
		{"daily too soon", "@daily", &hourAgo, false},
		{"daily elapsed", "@daily", &dayPlusAgo, true},
		{"hourly elapsed", "@hourly", &hourAgo, true},
		{"hourly too soon", "@hourly", &halfHourAgo, false},
		{"cron first run", "0 0 * * *", nil, true},
		{"cron elapsed", "0 0 * * *", &twoDaysAgo, true},
		{"invalid spec first run", "notcron", nil, true},
		{"invalid spec falls back to daily", "notcron", &hourAgo, false},
		{"invalid spec daily elapsed", "notcron", &dayPlusAgo, true},
	}
	for _, tc := range cases {
		if got := isDue(tc.spec, tc.last); got != tc.want {
			t.Fatalf("%s: isDue(%q) = %v, want %v", tc.name, tc.spec, got, tc.want)
		}
	}
}

func TestSchedulerTickLaunchesDueSweep(t *testing.T) {
	launched := make(chan struct{}, 2)
	s := &Scheduler{
		Schedule: "@hourly",
		Stop:     make(chan struct{}),
		launch: func(ctx context.Context) error {
			launched <- struct{}{}
			return nil
		},
		logger: log.New(io.Discard, "", 0),
	}

	s.tick()
	select {
	case <-launched:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the first due tick to launch a sweep")
	}

	// still inside the hourly window
	s.tick()
	select {
	case <-launched:
		t.Fatal("tick inside the schedule window must not launch again")
	case <-time.After(50 * time.Millisecond):
	}
}
