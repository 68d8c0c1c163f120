// Package bias applies auditable rule sets over article and summary text,
// producing typed indicators and a per-run transparency report. There is
// no learned component; every indicator traces back to a configured rule.
package bias

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/talk-less/talkless/internal/core/domain"
)

// Rule configuration errors. Rule-file problems are configuration errors
// and abort the run.
var (
	ErrInvalidScope      = errors.New("invalid rule scope")
	ErrInvalidConfidence = errors.New("invalid rule confidence")
	ErrEmptyPattern      = errors.New("empty rule pattern")
)

// Scope constants for rule matching.
const (
	ScopeTitle = "title"
	ScopeBody  = "body"
	ScopeAny   = "any"
)

const (
	defaultWeight        = 1.0
	defaultFlagThreshold = 2.0
)

// RuleEntry is one rule as written in bias_rules.yaml. Weight is a pointer
// so an explicit zero survives decoding.
type RuleEntry struct {
	Pattern    string            `yaml:"pattern"`
	Scope      string            `yaml:"scope"`
	Confidence domain.Confidence `yaml:"confidence"`
	Weight     *float64          `yaml:"weight"`
}

type ruleDoc struct {
	LoadedWords         []RuleEntry       `yaml:"loaded_words"`
	AttributionPatterns []RuleEntry       `yaml:"attribution_patterns"`
	FramingPatterns     []RuleEntry       `yaml:"framing_patterns"`
	MinConfidence       domain.Confidence `yaml:"min_confidence"`
	FlagThreshold       *float64          `yaml:"flag_threshold"`
}

// rule is a compiled, ready-to-scan rule.
type rule struct {
	kind       domain.IndicatorKind
	pattern    string
	re         *regexp.Regexp
	scope      string
	confidence domain.Confidence
	weight     float64
}

// RuleSet holds the compiled rule families and report thresholds.
type RuleSet struct {
	loaded      []rule
	attribution []rule
	framing     []rule

	MinConfidence domain.Confidence
	FlagThreshold float64
}

// LoadRules reads and compiles bias_rules.yaml. Any parse or compile
// failure is fatal.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bias rules: %w", err)
	}

	var doc ruleDoc
	if err = yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse bias rules: %w", err)
	}

	if doc.MinConfidence == "" {
		doc.MinConfidence = domain.ConfidenceLow
	}

	if doc.MinConfidence.Rank() < 0 {
		return nil, fmt.Errorf("%w: min_confidence %q", ErrInvalidConfidence, doc.MinConfidence)
	}

	flagThreshold := defaultFlagThreshold
	if doc.FlagThreshold != nil {
		flagThreshold = *doc.FlagThreshold
	}

	set := &RuleSet{
		MinConfidence: doc.MinConfidence,
		FlagThreshold: flagThreshold,
	}

	if set.loaded, err = compileFamily(doc.LoadedWords, domain.IndicatorLoadedLanguage, domain.ConfidenceMedium, compileLoaded); err != nil {
		return nil, err
	}

	if set.attribution, err = compileFamily(doc.AttributionPatterns, domain.IndicatorAttribution, domain.ConfidenceMedium, compileAttribution); err != nil {
		return nil, err
	}

	if set.framing, err = compileFamily(doc.FramingPatterns, domain.IndicatorFraming, domain.ConfidenceLow, compileFraming); err != nil {
		return nil, err
	}

	return set, nil
}

func compileFamily(entries []RuleEntry, kind domain.IndicatorKind, defaultConfidence domain.Confidence, compile func(string) (*regexp.Regexp, error)) ([]rule, error) {
	rules := make([]rule, 0, len(entries))

	for _, entry := range entries {
		if entry.Pattern == "" {
			return nil, fmt.Errorf("%w in %s rules", ErrEmptyPattern, kind)
		}

		// Framing rules always compare title against body; a scope on
		// them would be dead configuration.
		if kind == domain.IndicatorFraming && entry.Scope != "" {
			return nil, fmt.Errorf("%w: framing rule %q takes no scope", ErrInvalidScope, entry.Pattern)
		}

		if entry.Scope == "" {
			entry.Scope = ScopeAny
		}

		if entry.Scope != ScopeTitle && entry.Scope != ScopeBody && entry.Scope != ScopeAny {
			return nil, fmt.Errorf("%w: %q for pattern %q", ErrInvalidScope, entry.Scope, entry.Pattern)
		}

		if entry.Confidence == "" {
			entry.Confidence = defaultConfidence
		}

		if entry.Confidence.Rank() < 0 {
			return nil, fmt.Errorf("%w: %q for pattern %q", ErrInvalidConfidence, entry.Confidence, entry.Pattern)
		}

		weight := defaultWeight
		if entry.Weight != nil {
			weight = *entry.Weight
		}

		re, err := compile(entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %s rule %q: %w", kind, entry.Pattern, err)
		}

		rules = append(rules, rule{
			kind:       kind,
			pattern:    entry.Pattern,
			re:         re,
			scope:      entry.Scope,
			confidence: entry.Confidence,
			weight:     weight,
		})
	}

	return rules, nil
}

// compileLoaded matches the literal token or phrase case-insensitively on
// word boundaries.
func compileLoaded(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\b(?i:` + regexp.QuoteMeta(pattern) + `)\b`)
}

// compileAttribution treats the entry as a regex; entries that fail to
// compile fall back to a literal phrase match.
func compileAttribution(pattern string) (*regexp.Regexp, error) {
	if re, err := regexp.Compile(`(?i)` + pattern); err == nil {
		return re, nil
	}

	return regexp.Compile(`(?i)` + regexp.QuoteMeta(pattern))
}

// compileFraming compiles the headline pattern; the detector fires it only
// when the title matches and the body does not.
func compileFraming(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + pattern)
}
