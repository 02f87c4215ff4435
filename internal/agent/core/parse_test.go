package core

import "testing"

func TestParseDecisionWellFormed(t *testing.T) {
	raw := "THOUGHT: The basket is still empty.\nDECISION: PROCEED\nINSTRUCTION: Search the catalog for wireless keyboards."
	out := ParseDecision(raw)
	if out.Thought != "The basket is still empty." {
		t.Fatalf("thought: %q", out.Thought)
	}
	if out.Decision != DecisionProceed {
		t.Fatalf("decision: %q", out.Decision)
	}
	if out.Instruction != "Search the catalog for wireless keyboards." {
		t.Fatalf("instruction: %q", out.Instruction)
	}
	if out.Raw != raw {
		t.Fatalf("raw not preserved")
	}
}

func TestParseDecisionFinish(t *testing.T) {
	out := ParseDecision("THOUGHT: Order confirmed last turn.\nDECISION: FINISH\nINSTRUCTION: Nothing left to do.")
	if out.Decision != DecisionFinish {
		t.Fatalf("decision: %q", out.Decision)
	}
}

func TestParseDecisionMultiLineInstruction(t *testing.T) {
	raw := "DECISION: PROCEED\nINSTRUCTION: Add product 42 to the basket.\nThen confirm the basket total matches the quote."
	out := ParseDecision(raw)
	want := "Add product 42 to the basket.\nThen confirm the basket total matches the quote."
	if out.Instruction != want {
		t.Fatalf("instruction:\n%q\nwant:\n%q", out.Instruction, want)
	}
}

func TestParseDecisionMissingInstructionFallsBack(t *testing.T) {
	raw := "I believe we should look up the customer record first.\n\nLook up the customer with email jo@example.com."
	out := ParseDecision(raw)
	if out.Decision != DecisionProceed {
		t.Fatalf("decision should default to PROCEED, got %q", out.Decision)
	}
	if out.Instruction != "Look up the customer with email jo@example.com." {
		t.Fatalf("fallback instruction: %q", out.Instruction)
	}
}

func TestParseDecisionLooseLabels(t *testing.T) {
	out := ParseDecision("thought - basket verified\ndecision - finish\ninstruction - done")
	if out.Decision != DecisionFinish {
		t.Fatalf("decision: %q", out.Decision)
	}
	if out.Thought != "basket verified" {
		t.Fatalf("thought: %q", out.Thought)
	}
	if out.Instruction != "done" {
		t.Fatalf("instruction: %q", out.Instruction)
	}
}

func TestParseDecisionUnknownDecisionDefaultsProceed(t *testing.T) {
	out := ParseDecision("DECISION: MAYBE\nINSTRUCTION: retry the search")
	if out.Decision != DecisionProceed {
		t.Fatalf("decision: %q", out.Decision)
	}
}

func TestParseDecisionEmpty(t *testing.T) {
	out := ParseDecision("")
	if out.Decision != DecisionProceed || out.Instruction != "" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"tool": "get_basket", "args": {}}`, `{"tool": "get_basket", "args": {}}`},
		{"Sure, calling the tool now:\n{\"tool\": \"checkout\", \"args\": {\"confirm\": true}}\nDone.", `{"tool": "checkout", "args": {"confirm": true}}`},
		{`prefix {"a": {"b": 1}} suffix`, `{"a": {"b": 1}}`},
		{`{"note": "braces } inside { strings"}`, `{"note": "braces } inside { strings"}`},
		{`{"quote": "she said \"go\""}`, `{"quote": "she said \"go\""}`},
		{"no json here", ""},
		{`{"unbalanced": 1`, ""},
	}
	for _, tc := range cases {
		if got := ExtractJSON(tc.in); got != tc.want {
			t.Fatalf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
