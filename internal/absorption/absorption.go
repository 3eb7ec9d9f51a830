// Package absorption extracts the novel part of a near-duplicate submission
// so only that fragment is published.
package absorption

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
)

const (
	// MinNewContentPercent is the inclusive lower bound for absorbing:
	// exactly 10% new content absorbs, anything below is a pure duplicate.
	MinNewContentPercent = 10.0

	// KnownTokenRatio is the share of a segment's tokens that must already
	// appear in the original for the segment to count as known.
	KnownTokenRatio = 0.85
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?。！？])\s+`)
)

// Stats describes the size of each text, in runes of the trimmed text.
type Stats struct {
	OriginalLen       int     `json:"original_len"`
	NewLen            int     `json:"new_len"`
	ExtractedLen      int     `json:"extracted_len"`
	ReductionPercent  float64 `json:"reduction_percent"`
	NewContentPercent float64 `json:"new_content_percent"`
}

// Result is the outcome of one analysis.
type Result struct {
	ShouldAbsorb  bool   `json:"should_absorb"`
	ExtractedBody string `json:"extracted_body"`
	Stats         Stats  `json:"stats"`
}

// Analyzer compares a new body against an original one.
type Analyzer struct {
	MinNewContentPercent float64
	KnownTokenRatio      float64
}

// New returns an Analyzer with the standard thresholds.
func New() *Analyzer {
	return &Analyzer{
		MinNewContentPercent: MinNewContentPercent,
		KnownTokenRatio:      KnownTokenRatio,
	}
}

// Analyze runs the standard analyzer.
func Analyze(originalBody, newBody string) Result {
	return New().Analyze(originalBody, newBody)
}

// Analyze splits newBody into segments, keeps those not already present in
// originalBody and reports what share of newBody they make up.
func (a *Analyzer) Analyze(originalBody, newBody string) Result {
	original := strings.TrimSpace(originalBody)
	incoming := strings.TrimSpace(newBody)

	stats := Stats{
		OriginalLen: utf8.RuneCountInString(original),
		NewLen:      utf8.RuneCountInString(incoming),
	}
	if stats.NewLen == 0 {
		stats.ReductionPercent = 100
		return Result{Stats: stats}
	}

	normOriginal := normalize.Normalize(original)
	padded := " " + normOriginal + " "
	vocab := make(map[string]struct{})
	for _, tok := range normalize.Tokens(normOriginal) {
		vocab[tok] = struct{}{}
	}

	var fresh []string
	for _, seg := range segments(incoming) {
		if !a.known(seg, padded, vocab) {
			fresh = append(fresh, seg)
		}
	}

	extracted := strings.TrimSpace(strings.Join(fresh, "\n\n"))
	stats.ExtractedLen = utf8.RuneCountInString(extracted)
	// Multiply before dividing so whole-number shares come out exact.
	stats.NewContentPercent = float64(stats.ExtractedLen) * 100 / float64(stats.NewLen)
	stats.ReductionPercent = 100 - stats.NewContentPercent

	return Result{
		ShouldAbsorb:  stats.ExtractedLen > 0 && stats.NewContentPercent >= a.MinNewContentPercent,
		ExtractedBody: extracted,
		Stats:         stats,
	}
}

// known reports whether seg is contained in the original, on word
// boundaries, or mostly made of words the original already uses.
func (a *Analyzer) known(seg, paddedOriginal string, vocab map[string]struct{}) bool {
	norm := normalize.Normalize(seg)
	if norm == "" {
		return true
	}
	if strings.Contains(paddedOriginal, " "+norm+" ") {
		return true
	}

	tokens := normalize.Tokens(norm)
	hits := 0
	for _, tok := range tokens {
		if _, ok := vocab[tok]; ok {
			hits++
		}
	}
	return float64(hits) >= a.KnownTokenRatio*float64(len(tokens))
}

// segments splits text into paragraphs, or into sentences when there is
// only one paragraph.
func segments(text string) []string {
	paras := splitNonEmpty(paragraphBreak.Split(text, -1))
	if len(paras) > 1 {
		return paras
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	return splitNonEmpty(strings.Split(marked, "\x00"))
}

func splitNonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
