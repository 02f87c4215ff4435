package bench

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseLimitOverflow(t *testing.T) {
	tests := []struct {
		msg     string
		allowed int
		ok      bool
	}{
		{"Requested page size exceeded: 10 > 3", 3, true},
		{"limit exceeded (100 > 25)", 25, true},
		{"EXCEEDED 7 > 1", 1, true},
		{"exceeded 10 > 0", 0, false},
		{"page size too large", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		allowed, ok := ParseLimitOverflow(tt.msg)
		if ok != tt.ok || allowed != tt.allowed {
			t.Fatalf("ParseLimitOverflow(%q) = (%d, %v), expected (%d, %v)",
				tt.msg, allowed, ok, tt.allowed, tt.ok)
		}
	}
}

func TestIsInvalidPagination(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"invalid pagination parameters", true},
		{"Invalid offset", true},
		{"invalid limit value", true},
		{"invalid api key", false},
		{"pagination disabled", false},
	}
	for _, tt := range tests {
		if got := IsInvalidPagination(tt.msg); got != tt.want {
			t.Fatalf("IsInvalidPagination(%q) = %v, expected %v", tt.msg, got, tt.want)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{Endpoint: "/x", Status: 429, Message: "slow down"}, true},
		{&APIError{Endpoint: "/x", Status: 400, Message: "Rate limit reached"}, true},
		{fmt.Errorf("wrapped: %w", &APIError{Endpoint: "/x", Status: 429, Message: ""}), true},
		{errors.New("quota exhausted for project"), true},
		{errors.New("too many requests"), true},
		{errors.New("openai API returned status 429: slow down"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRateLimited(tt.err); got != tt.want {
			t.Fatalf("IsRateLimited(%v) = %v, expected %v", tt.err, got, tt.want)
		}
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Endpoint: "/tasks/start", Status: 404, Message: "no such task"}
	want := "API error 404 on /tasks/start: no such task"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
