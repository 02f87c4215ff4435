package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/droverhq/drover/internal/bench"
	"github.com/droverhq/drover/internal/tooling"
	"github.com/droverhq/drover/provider"
)

// funcProvider scripts one handler per expected chat call.
type funcProvider struct {
	steps []func(messages []provider.Message) (string, error)
	calls int
}

func (f *funcProvider) Chat(ctx context.Context, model string, messages []provider.Message, options map[string]interface{}) (string, error) {
	f.calls++
	if f.calls > len(f.steps) {
		return "", errors.New("unexpected model call")
	}
	return f.steps[f.calls-1](messages)
}

func wikiRegistry(t *testing.T) *tooling.Registry {
	t.Helper()
	reg, err := tooling.NewRegistry([]tooling.ToolCard{
		{Name: "search_wiki", Endpoint: "/wiki/search", Kind: tooling.KindRead, Paginated: true, Description: "list documents"},
		{Name: "read_wiki", Endpoint: "/wiki/get", Kind: tooling.KindRead, Description: "read one document"},
		{Name: "respond", Endpoint: "/respond", Kind: tooling.KindTerminal, Description: "final answer"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newWikiDispatcher(t *testing.T, transport Transport) *Dispatcher {
	t.Helper()
	return NewDispatcher(transport, wikiRegistry(t), NewActionLogger(), &tooling.CompletionState{}, newTestTelemetry(), bench.PageOptions{InitialLimit: 10, RetryAttempts: 5})
}

func wikiTransport(contents map[string]string) *stubTransport {
	docs := []map[string]string{
		{"slug": "rules", "title": "Ground Rules"},
		{"slug": "returns-policy", "title": "Returns Policy"},
		{"slug": "shipping", "title": "Shipping Rates"},
		{"slug": "holiday-schedule", "title": "Holiday Schedule"},
	}
	return newStubTransport(func(endpoint string, payload map[string]interface{}) (interface{}, error) {
		switch endpoint {
		case "/wiki/search":
			return map[string]interface{}{"items": docs, "next_offset": -1}, nil
		case "/wiki/get":
			slug, _ := payload["slug"].(string)
			content, ok := contents[slug]
			if !ok {
				return nil, &bench.APIError{Endpoint: endpoint, Status: 404, Message: "document not found"}
			}
			return map[string]interface{}{"slug": slug, "content": content}, nil
		default:
			return nil, errors.New("unexpected endpoint " + endpoint)
		}
	})
}

func TestNewExtractorRequiresKnowledgeTools(t *testing.T) {
	transport := newStubTransport(func(endpoint string, payload map[string]interface{}) (interface{}, error) {
		return nil, nil
	})
	d, _, _ := newTestDispatcher(t, transport)
	if _, err := NewExtractor(&stubProvider{}, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry()); err == nil {
		t.Fatal("expected an error for a profile without knowledge tools")
	}
}

func TestExtractorPipeline(t *testing.T) {
	transport := wikiTransport(map[string]string{
		"rules":          "Always confirm the requester's identity before sharing records.",
		"returns-policy": "Returns are accepted within 30 days of delivery.",
	})
	d := newWikiDispatcher(t, transport)
	prov := &funcProvider{steps: []func(messages []provider.Message) (string, error){
		func(messages []provider.Message) (string, error) {
			return "returns, refund policy", nil
		},
		func(messages []provider.Message) (string, error) {
			prompt := messages[0].Content
			if !strings.Contains(prompt, "Returns are accepted within 30 days") {
				return "", errors.New("condense prompt missing harvested content")
			}
			if !strings.Contains(prompt, "## rules") {
				return "", errors.New("condense prompt missing rules document")
			}
			return "Returns are accepted within 30 days. Identity must be confirmed first.", nil
		},
	}}

	x, err := NewExtractor(prov, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	got := x.Extract(context.Background(), testTask())
	if got != "Returns are accepted within 30 days. Identity must be confirmed first." {
		t.Fatalf("unexpected summary: %q", got)
	}
	if transport.calls["/wiki/search"] != 1 {
		t.Fatalf("expected one listing call, got %d", transport.calls["/wiki/search"])
	}
	if transport.calls["/wiki/get"] != 2 {
		t.Fatalf("expected rules + matched doc fetches, got %d", transport.calls["/wiki/get"])
	}
}

func TestExtractorFetchFailureSkipsDocument(t *testing.T) {
	// rules is missing from the store; only the matched doc survives.
	transport := wikiTransport(map[string]string{
		"returns-policy": "Returns are accepted within 30 days of delivery.",
	})
	d := newWikiDispatcher(t, transport)
	prov := &funcProvider{steps: []func(messages []provider.Message) (string, error){
		func(messages []provider.Message) (string, error) { return "returns", nil },
		func(messages []provider.Message) (string, error) {
			if strings.Contains(messages[0].Content, "## rules") {
				return "", errors.New("failed fetch leaked into the material")
			}
			return "Returns window is 30 days.", nil
		},
	}}

	x, err := NewExtractor(prov, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if got := x.Extract(context.Background(), testTask()); got != "Returns window is 30 days." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestExtractorEmptyHarvestSentinel(t *testing.T) {
	transport := wikiTransport(nil) // every fetch 404s
	d := newWikiDispatcher(t, transport)
	prov := &funcProvider{steps: []func(messages []provider.Message) (string, error){
		func(messages []provider.Message) (string, error) { return "returns", nil },
	}}

	x, err := NewExtractor(prov, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if got := x.Extract(context.Background(), testTask()); got != NoRelevantInformation {
		t.Fatalf("expected sentinel, got %q", got)
	}
}

func TestExtractorCondenseFailureSentinel(t *testing.T) {
	transport := wikiTransport(map[string]string{
		"rules": "Always confirm the requester's identity.",
	})
	d := newWikiDispatcher(t, transport)
	prov := &funcProvider{steps: []func(messages []provider.Message) (string, error){
		func(messages []provider.Message) (string, error) { return "identity", nil },
		func(messages []provider.Message) (string, error) {
			return "", errors.New("openai API returned status 500: upstream")
		},
	}}

	x, err := NewExtractor(prov, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if got := x.Extract(context.Background(), testTask()); got != NoRelevantInformation {
		t.Fatalf("expected sentinel, got %q", got)
	}
}

func TestExtractorKeywordFailureUsesHeuristic(t *testing.T) {
	transport := wikiTransport(map[string]string{
		"rules": "Always confirm the requester's identity.",
	})
	d := newWikiDispatcher(t, transport)
	// First call (keywords) fails; the pipeline continues on heuristic
	// tokens and still condenses.
	prov := &funcProvider{steps: []func(messages []provider.Message) (string, error){
		func(messages []provider.Message) (string, error) {
			return "", errors.New("openai API returned status 429: slow down")
		},
		func(messages []provider.Message) (string, error) {
			return "Identity must be confirmed.", nil
		},
	}}

	x, err := NewExtractor(prov, "gpt-test", d, "search_wiki", "read_wiki", newTestTelemetry())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if got := x.Extract(context.Background(), testTask()); got != "Identity must be confirmed." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestFallbackKeywords(t *testing.T) {
	got := fallbackKeywords("Order 3 USB-C cables for the Berlin office, then email Jo.")
	want := []string{"order", "cables", "berlin", "office", "then"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fallbackKeywords = %v, want %v", got, want)
	}
}

func TestFallbackKeywordsDedupes(t *testing.T) {
	got := fallbackKeywords("basket Basket BASKET basket")
	if !reflect.DeepEqual(got, []string{"basket"}) {
		t.Fatalf("fallbackKeywords = %v", got)
	}
}
