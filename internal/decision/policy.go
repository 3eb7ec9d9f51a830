package decision

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default policy values.
const (
	DefaultMinApprovalScore   = 80.0
	DefaultMaxRejectScore     = 30.0
	DefaultReuseMinFrequency  = 3.0
	DefaultReuseMinSimilarity = 0.88
)

// DefaultSensitiveFlags force human review whatever the score.
var DefaultSensitiveFlags = []string{"pii", "medical", "legal", "financial", "unsafe"}

// DefaultGreetingPatterns match short conversational openers in English,
// Portuguese and Spanish. Patterns run against normalized text.
var DefaultGreetingPatterns = []string{
	`^(hi|hello|hey|hiya|yo|greetings)( there| all| everyone)?$`,
	`^good (morning|afternoon|evening|night)$`,
	`^(thanks|thank you|thx|cheers)( so much| a lot)?$`,
	`^(oi|olá|ola|e aí|e ai|bom dia|boa tarde|boa noite|obrigad[oa])$`,
	`^(hola|buenos días|buenos dias|buenas tardes|buenas noches|gracias)$`,
}

// Policy is the decision configuration, loaded from YAML.
type Policy struct {
	MinApprovalScore float64  `yaml:"min_approval_score"`
	MaxRejectScore   float64  `yaml:"max_reject_score"`
	SensitiveFlags   []string `yaml:"sensitive_flags"`
	GreetingPatterns []string `yaml:"greeting_patterns"`

	Reuse ReusePolicy `yaml:"reuse"`

	// AdjudicationFailClosed makes duplicate adjudication failures count as
	// duplicates. The default fails open.
	AdjudicationFailClosed bool `yaml:"adjudication_fail_closed"`

	Namespaces map[string]NamespaceOverride `yaml:"namespaces"`

	greetings []*regexp.Regexp
}

// ReusePolicy configures the reuse gate.
type ReusePolicy struct {
	Enabled       bool    `yaml:"enabled"`
	MinFrequency  float64 `yaml:"min_frequency"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// NamespaceOverride replaces individual settings for one namespace. Nil
// fields inherit the global value; SensitiveFlags are added to the global set.
type NamespaceOverride struct {
	MinApprovalScore       *float64 `yaml:"min_approval_score"`
	MaxRejectScore         *float64 `yaml:"max_reject_score"`
	SensitiveFlags         []string `yaml:"sensitive_flags"`
	ReuseEnabled           *bool    `yaml:"reuse_enabled"`
	AdjudicationFailClosed *bool    `yaml:"adjudication_fail_closed"`
}

// Effective is the policy resolved for one namespace, reported with every decision.
type Effective struct {
	Namespace          string   `json:"namespace"`
	MinApprovalScore   float64  `json:"min_approval_score"`
	MaxRejectScore     float64  `json:"max_reject_score"`
	SensitiveFlags     []string `json:"sensitive_flags"`
	ReuseEnabled       bool     `json:"reuse_enabled"`
	ReuseMinFrequency  float64  `json:"reuse_min_frequency"`
	ReuseMinSimilarity float64  `json:"reuse_min_similarity"`
	Overridden         bool     `json:"overridden"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p := &Policy{
		MinApprovalScore: DefaultMinApprovalScore,
		MaxRejectScore:   DefaultMaxRejectScore,
		SensitiveFlags:   append([]string(nil), DefaultSensitiveFlags...),
		GreetingPatterns: append([]string(nil), DefaultGreetingPatterns...),
		Reuse: ReusePolicy{
			Enabled:       true,
			MinFrequency:  DefaultReuseMinFrequency,
			MinSimilarity: DefaultReuseMinSimilarity,
		},
	}
	_ = p.compile()
	return p
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path
// returns DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes YAML over the defaults and validates the result.
func ParsePolicy(data []byte) (*Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks score ranges of the global policy and every override.
func (p *Policy) Validate() error {
	if err := validateScores("policy", p.MinApprovalScore, p.MaxRejectScore); err != nil {
		return err
	}
	if p.Reuse.MinSimilarity < 0 || p.Reuse.MinSimilarity > 1 {
		return fmt.Errorf("reuse.min_similarity must be within [0,1] (got %v)", p.Reuse.MinSimilarity)
	}
	for ns := range p.Namespaces {
		e := p.For(ns)
		if err := validateScores("namespace "+ns, e.MinApprovalScore, e.MaxRejectScore); err != nil {
			return err
		}
	}
	return nil
}

func validateScores(scope string, minApprove, maxReject float64) error {
	if minApprove < 0 || minApprove > 100 || maxReject < 0 || maxReject > 100 {
		return fmt.Errorf("%s: scores must be within [0,100]", scope)
	}
	if maxReject >= minApprove {
		return fmt.Errorf("%s: max_reject_score (%v) must be below min_approval_score (%v)", scope, maxReject, minApprove)
	}
	return nil
}

func (p *Policy) compile() error {
	p.greetings = p.greetings[:0]
	var errs []error
	for _, src := range p.GreetingPatterns {
		re, err := regexp.Compile(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid greeting pattern %q: %w", src, err))
			continue
		}
		p.greetings = append(p.greetings, re)
	}
	return errors.Join(errs...)
}

// For resolves the policy for namespace.
func (p *Policy) For(namespace string) Effective {
	e := Effective{
		Namespace:          namespace,
		MinApprovalScore:   p.MinApprovalScore,
		MaxRejectScore:     p.MaxRejectScore,
		SensitiveFlags:     normalizeFlags(p.SensitiveFlags),
		ReuseEnabled:       p.Reuse.Enabled,
		ReuseMinFrequency:  p.Reuse.MinFrequency,
		ReuseMinSimilarity: p.Reuse.MinSimilarity,
	}

	o, ok := p.Namespaces[namespace]
	if !ok || namespace == "" {
		return e
	}
	e.Overridden = true
	if o.MinApprovalScore != nil {
		e.MinApprovalScore = *o.MinApprovalScore
	}
	if o.MaxRejectScore != nil {
		e.MaxRejectScore = *o.MaxRejectScore
	}
	if o.ReuseEnabled != nil {
		e.ReuseEnabled = *o.ReuseEnabled
	}
	e.SensitiveFlags = normalizeFlags(append(e.SensitiveFlags, o.SensitiveFlags...))
	return e
}

// FailClosed reports the adjudication fail mode for namespace.
func (p *Policy) FailClosed(namespace string) bool {
	if o, ok := p.Namespaces[namespace]; ok && o.AdjudicationFailClosed != nil {
		return *o.AdjudicationFailClosed
	}
	return p.AdjudicationFailClosed
}

// IsGreeting reports whether normalized text is a conversational greeting.
func (p *Policy) IsGreeting(normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, re := range p.greetings {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

func normalizeFlags(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		f = strings.ToLower(strings.TrimSpace(f))
		if _, dup := seen[f]; f == "" || dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
