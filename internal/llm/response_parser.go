package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the first complete JSON object in text, ignoring code
// fences and any prose the model added around it. When no complete object is
// found it returns the trimmed text unchanged and lets the decoder fail.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	depth := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escape {
			escape = false
			continue
		}
		if ch == '\\' && inString {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return text
}

// DecodeJSON extracts the JSON object from a model reply and decodes it into v.
func DecodeJSON(text string, v interface{}) error {
	if err := json.Unmarshal([]byte(ExtractJSON(text)), v); err != nil {
		return fmt.Errorf("failed to parse model response: %w", err)
	}
	return nil
}

// AnalysisVerdict is the decoded curator or fallback reply.
type AnalysisVerdict struct {
	Score          float64  `json:"score"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
	Flags          []string `json:"flags"`
	SuggestedEdits []string `json:"suggested_edits"`
}

// ParseAnalysisVerdict decodes a verdict, clamps the score to [0,100],
// lowercases flags and requires a known recommendation.
func ParseAnalysisVerdict(text string) (*AnalysisVerdict, error) {
	var v AnalysisVerdict
	if err := DecodeJSON(text, &v); err != nil {
		return nil, err
	}

	v.Recommendation = strings.ToLower(strings.TrimSpace(v.Recommendation))
	switch v.Recommendation {
	case "approve", "reject", "review":
	default:
		return nil, fmt.Errorf("unknown recommendation %q", v.Recommendation)
	}

	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}

	flags := v.Flags[:0]
	for _, f := range v.Flags {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			flags = append(flags, f)
		}
	}
	v.Flags = flags
	return &v, nil
}

// AdjudicationVerdict is the decoded duplicate adjudication reply.
type AdjudicationVerdict struct {
	SameInformation bool   `json:"same_information"`
	Reason          string `json:"reason"`
}

// ParseAdjudicationVerdict decodes an adjudication reply. A reply without
// the same_information field is an error, not a "false".
func ParseAdjudicationVerdict(text string) (*AdjudicationVerdict, error) {
	var raw struct {
		SameInformation *bool  `json:"same_information"`
		Reason          string `json:"reason"`
	}
	if err := DecodeJSON(text, &raw); err != nil {
		return nil, err
	}
	if raw.SameInformation == nil {
		return nil, fmt.Errorf("adjudication reply has no same_information field")
	}
	return &AdjudicationVerdict{SameInformation: *raw.SameInformation, Reason: raw.Reason}, nil
}
