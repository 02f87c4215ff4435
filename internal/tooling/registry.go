package tooling

import (
	"fmt"
	"strings"
)

// Tool kinds. Read tools never change remote state, mutating tools do, and
// the terminal tool finishes the task and flips the completion latch.
const (
	KindRead     = "read"
	KindMutating = "mutating"
	KindTerminal = "terminal"
)

// ToolCard is registry metadata for one callable tool.
type ToolCard struct {
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Paginated   bool   `json:"paginated,omitempty"`
	ArgsHint    string `json:"args_hint,omitempty"`
}

func (tc ToolCard) validate() error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("tool name is empty")
	}
	if !strings.HasPrefix(tc.Endpoint, "/") {
		return fmt.Errorf("tool %s: endpoint %q must start with /", tc.Name, tc.Endpoint)
	}
	switch tc.Kind {
	case KindRead, KindMutating, KindTerminal:
	default:
		return fmt.Errorf("tool %s: unknown kind %q", tc.Name, tc.Kind)
	}
	return nil
}

// ErrNoTerminalTool indicates a profile without a way to finish a task.
var ErrNoTerminalTool = fmt.Errorf("no terminal tool registered")

// Registry holds validated ToolCards keyed by name, preserving registration
// order for prompt rendering.
type Registry struct {
	tools map[string]ToolCard
	order []string
}

// NewRegistry validates cards and ensures at least one terminal tool exists.
func NewRegistry(cards []ToolCard) (*Registry, error) {
	reg := &Registry{tools: make(map[string]ToolCard)}
	terminal := false
	for _, tc := range cards {
		if err := tc.validate(); err != nil {
			return nil, err
		}
		if _, ok := reg.tools[tc.Name]; ok {
			return nil, fmt.Errorf("duplicate tool %s", tc.Name)
		}
		reg.tools[tc.Name] = tc
		reg.order = append(reg.order, tc.Name)
		if tc.Kind == KindTerminal {
			terminal = true
		}
	}
	if !terminal {
		return nil, ErrNoTerminalTool
	}
	return reg, nil
}

// Tool returns the ToolCard for a name.
func (r *Registry) Tool(name string) (ToolCard, bool) {
	if r == nil {
		return ToolCard{}, false
	}
	tc, ok := r.tools[name]
	return tc, ok
}

// Cards returns all tools in registration order.
func (r *Registry) Cards() []ToolCard {
	if r == nil {
		return nil
	}
	out := make([]ToolCard, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Terminal returns the first terminal tool.
func (r *Registry) Terminal() ToolCard {
	for _, name := range r.order {
		if tc := r.tools[name]; tc.Kind == KindTerminal {
			return tc
		}
	}
	return ToolCard{}
}

// Catalog renders the tool list for an instruction prompt, one line per tool.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, tc := range r.Cards() {
		fmt.Fprintf(&b, "- %s (%s", tc.Name, tc.Kind)
		if tc.Paginated {
			b.WriteString(", paginated")
		}
		b.WriteString("): ")
		b.WriteString(tc.Description)
		if tc.ArgsHint != "" {
			fmt.Fprintf(&b, " Args: %s.", tc.ArgsHint)
		}
		b.WriteString("\n")
	}
	return b.String()
}
