package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/knowledge"
	"github.com/droverhq/drover/provider"
)

// NoRelevantInformation is the sentinel an extraction yields when nothing
// useful was found. Never an empty string.
const NoRelevantInformation = "no relevant information"

const (
	maxKeywords       = 5
	minKeywordLength  = 4
	maxContextDocs    = 5
	maxDocContentSize = 6000
)

// Extractor condenses knowledge-base material relevant to a task into a
// short fact summary before the first turn. Every stage degrades instead of
// blocking: keyword extraction falls back to a token heuristic, a failed
// document fetch skips that document only, and an empty harvest yields the
// sentinel. The summary states facts, never verdicts; deciding is the
// planner's job.
type Extractor struct {
	provider   provider.Provider
	model      string
	dispatcher *Dispatcher
	searchTool string
	readTool   string
	telemetry  *telemetry.Telemetry
	logger     *log.Logger
}

// NewExtractor creates an extractor over the profile's knowledge tools.
// Profiles without both tools cannot support extraction.
func NewExtractor(prov provider.Provider, model string, dispatcher *Dispatcher, searchTool, readTool string, tele *telemetry.Telemetry) (*Extractor, error) {
	if _, ok := dispatcher.Registry().Tool(searchTool); !ok {
		return nil, fmt.Errorf("profile has no %s tool", searchTool)
	}
	if _, ok := dispatcher.Registry().Tool(readTool); !ok {
		return nil, fmt.Errorf("profile has no %s tool", readTool)
	}
	return &Extractor{
		provider:   prov,
		model:      model,
		dispatcher: dispatcher,
		searchTool: searchTool,
		readTool:   readTool,
		telemetry:  tele,
		logger:     log.New(log.Writer(), "[EXTRACTOR] ", log.LstdFlags),
	}, nil
}

// Extract runs the pipeline and always returns a usable summary string.
func (x *Extractor) Extract(ctx context.Context, task Task) string {
	keywords := x.keywords(ctx, task.Text)
	x.logger.Printf("keywords: %s", strings.Join(keywords, ", "))

	slugs := x.discover(ctx, keywords)
	if len(slugs) == 0 {
		return NoRelevantInformation
	}

	var docs []string
	for _, slug := range slugs {
		content, ok := x.fetch(ctx, slug)
		if !ok {
			continue
		}
		docs = append(docs, fmt.Sprintf("## %s\n%s", slug, content))
	}
	if len(docs) == 0 {
		return NoRelevantInformation
	}

	return x.condense(ctx, task.Text, strings.Join(docs, "\n\n"))
}

// keywords derives salient terms via the model, falling back to alphabetic
// tokens from the task text so this stage never blocks the pipeline.
func (x *Extractor) keywords(ctx context.Context, text string) []string {
	prompt := fmt.Sprintf(keywordPromptTemplate, maxKeywords, text)
	start := time.Now()
	reply, err := x.provider.Chat(ctx, x.model, []provider.Message{
		{Role: "user", Content: prompt},
	}, map[string]interface{}{"temperature": 0.0})
	x.telemetry.RecordLLMCall(ctx, "extractor", time.Since(start), err)
	if err != nil {
		x.logger.Printf("keyword model call failed, using heuristic: %v", err)
		return fallbackKeywords(text)
	}

	var keywords []string
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(reply, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		kw := strings.ToLower(strings.TrimSpace(part))
		kw = strings.Trim(kw, `"'.`)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if len(keywords) >= maxKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		return fallbackKeywords(text)
	}
	return keywords
}

var alphaToken = regexp.MustCompile(`[A-Za-z]+`)

func fallbackKeywords(text string) []string {
	var keywords []string
	seen := map[string]bool{}
	for _, token := range alphaToken.FindAllString(text, -1) {
		if len(token) < minKeywordLength {
			continue
		}
		kw := strings.ToLower(token)
		if seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if len(keywords) >= maxKeywords {
			break
		}
	}
	return keywords
}

// discover lists the knowledge documents and selects the relevant slugs,
// always including the canonical rules document.
func (x *Extractor) discover(ctx context.Context, keywords []string) []string {
	result, err := x.dispatcher.Call(ctx, x.searchTool, map[string]interface{}{"query": ""})
	if err != nil {
		x.logger.Printf("document listing failed: %v", err)
		return []string{knowledge.RulesSlug}
	}
	items, _ := result["items"].([]json.RawMessage)

	var docs []knowledge.Doc
	for _, raw := range items {
		var doc knowledge.Doc
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Slug == "" {
			continue
		}
		docs = append(docs, doc)
	}

	index, err := knowledge.NewIndex(docs)
	if err != nil {
		x.logger.Printf("document index failed: %v", err)
		return []string{knowledge.RulesSlug}
	}
	return index.Select(keywords, maxContextDocs)
}

// fetch loads one document; a failure skips this document only.
func (x *Extractor) fetch(ctx context.Context, slug string) (string, bool) {
	result, err := x.dispatcher.Call(ctx, x.readTool, map[string]interface{}{"slug": slug})
	if err != nil {
		x.logger.Printf("fetch %s failed: %v", slug, err)
		return "", false
	}
	if msg, failed := result["error"]; failed {
		x.logger.Printf("fetch %s failed: %v", slug, msg)
		return "", false
	}
	content, _ := result["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	sourceURL, _ := result["url"].(string)
	content = knowledge.ReduceContent(content, sourceURL)
	if len(content) > maxDocContentSize {
		content = content[:maxDocContentSize] + "...(truncated)"
	}
	return content, true
}

// condense folds the harvested material into a short fact summary.
func (x *Extractor) condense(ctx context.Context, taskText, material string) string {
	prompt := fmt.Sprintf(condensePromptTemplate, taskText, material)
	start := time.Now()
	reply, err := x.provider.Chat(ctx, x.model, []provider.Message{
		{Role: "user", Content: prompt},
	}, map[string]interface{}{"temperature": 0.0})
	x.telemetry.RecordLLMCall(ctx, "extractor", time.Since(start), err)
	if err != nil {
		x.logger.Printf("condensation failed: %v", err)
		return NoRelevantInformation
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return NoRelevantInformation
	}
	return reply
}
