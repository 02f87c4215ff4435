package core

import "strings"

// ParseDecision parses the planner's labeled output. The planner is a text
// generator whose adherence to the THOUGHT/DECISION/INSTRUCTION format is
// not guaranteed, so parsing is best-effort and never fails: when the
// instruction label is missing, the last non-empty line stands in for it,
// and an absent decision defaults to PROCEED.
func ParseDecision(raw string) PlannerOutput {
	out := PlannerOutput{Decision: DecisionProceed, Raw: raw}

	lines := strings.Split(raw, "\n")
	var instruction []string
	inInstruction := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "THOUGHT"):
			out.Thought = labelValue(trimmed)
			inInstruction = false
		case strings.HasPrefix(upper, "DECISION"):
			value := strings.ToUpper(labelValue(trimmed))
			if strings.Contains(value, DecisionFinish) {
				out.Decision = DecisionFinish
			} else if strings.Contains(value, DecisionProceed) {
				out.Decision = DecisionProceed
			}
			inInstruction = false
		case strings.HasPrefix(upper, "INSTRUCTION"):
			if v := labelValue(trimmed); v != "" {
				instruction = append(instruction, v)
			}
			inInstruction = true
		case inInstruction && trimmed != "":
			instruction = append(instruction, trimmed)
		}
	}

	out.Instruction = strings.TrimSpace(strings.Join(instruction, "\n"))
	if out.Instruction == "" {
		out.Instruction = lastNonEmptyLine(raw)
	}
	return out
}

func labelValue(line string) string {
	if i := strings.IndexAny(line, ":-"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

func lastNonEmptyLine(raw string) string {
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ExtractJSON returns the first balanced JSON object embedded in free text,
// or empty when none is found.
func ExtractJSON(response string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range response {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}
