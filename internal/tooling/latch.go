package tooling

import (
	"errors"
	"sync"
)

// ErrTaskCompleted is returned for state-changing dispatches attempted after
// the completion latch is set.
var ErrTaskCompleted = errors.New("task already completed")

// CompletionState is a one-way latch recording that the task's terminal
// action succeeded. It never resets within a task run.
type CompletionState struct {
	mu     sync.Mutex
	done   bool
	reason string
}

// MarkDone sets the latch. It reports false when the latch was already set,
// in which case the original reason is preserved.
func (c *CompletionState) MarkDone(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	c.done = true
	c.reason = reason
	return true
}

// Done reports whether the terminal action already succeeded.
func (c *CompletionState) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reason returns the recorded completion reason, empty until MarkDone.
func (c *CompletionState) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}
