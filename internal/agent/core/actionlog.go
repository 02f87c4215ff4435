package core

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
)

// NoInteractionsMessage is the sentinel returned when a turn recorded no
// gateway traffic. Callers must treat an empty log as a first-class state.
const NoInteractionsMessage = "No API interactions recorded this turn."

const maxLoggedPayload = 4000

// ActionLogger accumulates the request/response trail of the current turn.
// Lines logged via Log are also echoed to the live stream for operator
// visibility; LogError appends silently because the caller already echoed
// the raw failure.
type ActionLogger struct {
	mu     sync.Mutex
	lines  []string
	logger *log.Logger
}

// NewActionLogger creates a turn-scoped action logger.
func NewActionLogger() *ActionLogger {
	return &ActionLogger{logger: log.New(log.Writer(), "[ACTIONS] ", log.LstdFlags)}
}

// Request logs an outgoing gateway payload tagged with its endpoint.
func (a *ActionLogger) Request(endpoint string, payload interface{}) {
	a.Log(fmt.Sprintf("[REQ -> %s] %s", endpoint, compactJSON(payload)))
}

// Response logs a successful gateway reply.
func (a *ActionLogger) Response(endpoint string, body interface{}) {
	a.Log(fmt.Sprintf("[<- RESP %s] %s", endpoint, compactJSON(body)))
}

// Error logs a failed gateway call without a duplicate live echo.
func (a *ActionLogger) Error(endpoint string, err error) {
	a.LogError(fmt.Sprintf("[<- RESP ERROR %s] %s", endpoint, err))
}

// Log appends a line and mirrors it to the live stream.
func (a *ActionLogger) Log(line string) {
	a.mu.Lock()
	a.lines = append(a.lines, line)
	a.mu.Unlock()
	a.logger.Print(line)
}

// LogError appends a line silently.
func (a *ActionLogger) LogError(line string) {
	a.mu.Lock()
	a.lines = append(a.lines, line)
	a.mu.Unlock()
}

// Clear truncates the buffer at the start of a turn.
func (a *ActionLogger) Clear() {
	a.mu.Lock()
	a.lines = nil
	a.mu.Unlock()
}

// HistoryEntry returns the newline-joined trail of the current turn, or the
// no-interactions sentinel when nothing was recorded.
func (a *ActionLogger) HistoryEntry() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.lines) == 0 {
		return NoInteractionsMessage
	}
	return strings.Join(a.lines, "\n")
}

// Drain returns the current trail like HistoryEntry and clears the buffer.
func (a *ActionLogger) Drain() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.lines) == 0 {
		return NoInteractionsMessage
	}
	entry := strings.Join(a.lines, "\n")
	a.lines = nil
	return entry
}

func compactJSON(v interface{}) string {
	var rendered string
	switch t := v.(type) {
	case nil:
		rendered = "{}"
	case string:
		rendered = t
	case []byte:
		rendered = string(t)
	case json.RawMessage:
		rendered = string(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			rendered = fmt.Sprintf("%v", v)
		} else {
			rendered = string(b)
		}
	}
	if len(rendered) > maxLoggedPayload {
		rendered = rendered[:maxLoggedPayload] + "...(truncated)"
	}
	return rendered
}
