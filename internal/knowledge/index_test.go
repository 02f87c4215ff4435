package knowledge

import (
	"strings"
	"testing"
)

func testDocs() []Doc {
	return []Doc{
		{Slug: "rules", Title: "Company Rules"},
		{Slug: "expense-policy", Title: "Expense Reimbursement Policy"},
		{Slug: "onboarding", Title: "New Employee Onboarding"},
		{Slug: "security", Title: "Security and Access Guidelines"},
	}
}

func TestSelectLeadsWithRules(t *testing.T) {
	x, err := NewIndex(testDocs())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got := x.Select([]string{"expense"}, 5)
	if len(got) < 2 {
		t.Fatalf("expected rules plus a match, got %v", got)
	}
	if got[0] != RulesSlug {
		t.Fatalf("rules document must lead, got %v", got)
	}
	if got[1] != "expense-policy" {
		t.Fatalf("expected expense-policy match, got %v", got)
	}
}

func TestSelectMatchesCaseInsensitive(t *testing.T) {
	x, err := NewIndex(testDocs())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got := x.Select([]string{"ONBOARDING"}, 5)
	found := false
	for _, slug := range got {
		if slug == "onboarding" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected case-insensitive match, got %v", got)
	}
}

func TestSelectDeduplicatesAndCaps(t *testing.T) {
	x, err := NewIndex(testDocs())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got := x.Select([]string{"policy", "expense", "rules", "security", "onboarding"}, 3)
	if len(got) > 3 {
		t.Fatalf("expected cap of 3, got %v", got)
	}
	seen := map[string]bool{}
	for _, slug := range got {
		if seen[slug] {
			t.Fatalf("duplicate slug %s in %v", slug, got)
		}
		seen[slug] = true
	}
	if got[0] != RulesSlug {
		t.Fatalf("rules document must survive the cap, got %v", got)
	}
}

func TestSelectNoKeywordsStillIncludesRules(t *testing.T) {
	x, err := NewIndex(testDocs())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got := x.Select(nil, 5)
	if len(got) != 1 || got[0] != RulesSlug {
		t.Fatalf("expected only the rules document, got %v", got)
	}
}

func TestReduceContentHTML(t *testing.T) {
	html := `<html><head><title>Expense Policy</title></head><body>
<div id="content">
<p>Meals are reimbursed up to 40 euros per day, provided the trip was
approved in advance by the requesting employee's manager and the claim is
filed within thirty days of the travel end date.</p>
<p>Receipts are required for every claim. Claims without receipts are
rejected by the finance team during the monthly review, and repeated
unreceipted claims are escalated to the department head.</p>
</div></body></html>`

	got := ReduceContent(html, "https://kb.internal/expense-policy")
	if strings.Contains(got, "<p>") {
		t.Fatalf("expected markup stripped, got %q", got)
	}
	if !strings.Contains(got, "40 euros") {
		t.Fatalf("expected body text preserved, got %q", got)
	}
}

func TestReduceContentPlainTextPassthrough(t *testing.T) {
	text := "Meals are reimbursed up to 40 euros per day."
	if got := ReduceContent(text, ""); got != text {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
