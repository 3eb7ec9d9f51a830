package llm

import (
	"fmt"
	"strings"
)

// AdjudicationSystemPrompt frames the duplicate adjudication call.
const AdjudicationSystemPrompt = `You compare two texts for a knowledge base and decide whether they carry the same information.
Respond with ONLY a JSON object. NO markdown. NO code blocks.`

// AdjudicationPrompt asks whether candidate restates existing.
// The model must answer {"same_information": bool, "reason": string}.
func AdjudicationPrompt(existing, candidate string) string {
	return fmt.Sprintf(`TASK: Decide whether TEXT B expresses the same information as TEXT A.
Rewording, reordering, or a different tone is still the same information.
New facts, new steps, or contradicting details are NOT the same information.

TEXT A:
%s

TEXT B:
%s

REQUIRED JSON STRUCTURE:
{"same_information": true, "reason": "one short sentence"}

Return ONLY the JSON object:`, existing, candidate)
}

// DefaultCuratorInstructions is used when no curator profile supplies its own.
const DefaultCuratorInstructions = `You are the curator of a knowledge base. You judge whether submitted content is accurate, useful, and safe to publish.`

// CuratorSystemPrompt combines curator instructions with the output contract.
func CuratorSystemPrompt(instructions string) string {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultCuratorInstructions
	}
	return instructions + `

Respond with ONLY a JSON object. NO markdown. NO code blocks. NO prose before or after the JSON.`
}

// CuratorAnalysisPrompt asks for a full quality verdict on a submission.
func CuratorAnalysisPrompt(title, body string, tags, namespaces []string) string {
	return fmt.Sprintf(`TASK: Review this submission for publication.

TITLE: %s
TAGS: %s
TARGET NAMESPACES: %s

BODY:
%s

SCORING (0-100):
- 80-100: accurate, clear, broadly useful, ready to publish
- 50-79: useful but needs review or edits
- 0-49: wrong, spam, empty, harmful, or off-topic

FLAGS (use only when they apply):
- "pii": personal data such as emails, phone numbers, addresses
- "medical", "legal", "financial": advice in a regulated area
- "unsafe": instructions that could cause harm
- "unverified": factual claims that need a source
- "low_quality": very short, garbled, or unclear

REQUIRED JSON STRUCTURE:
{
  "score": 0,
  "recommendation": "approve|reject|review",
  "reasoning": "two sentences at most",
  "flags": [],
  "suggested_edits": []
}

Return ONLY the JSON object:`, title, joinOrNone(tags), joinOrNone(namespaces), body)
}

// FallbackAnalysisSystemPrompt is used with the general-purpose model.
const FallbackAnalysisSystemPrompt = `You rate content for a knowledge base. Respond with ONLY a JSON object.`

// FallbackAnalysisPrompt is a shorter prompt for the general-purpose model.
func FallbackAnalysisPrompt(title, body string) string {
	return fmt.Sprintf(`Rate this content from 0 to 100 for publication and recommend approve, reject, or review.

TITLE: %s
BODY:
%s

JSON: {"score": 0, "recommendation": "review", "reasoning": "short reason", "flags": []}`, title, body)
}

func joinOrNone(v []string) string {
	if len(v) == 0 {
		return "(none)"
	}
	return strings.Join(v, ", ")
}
