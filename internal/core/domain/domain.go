// Package domain holds the value records passed between pipeline stages.
// Records are immutable after construction; stages reference each other by
// id rather than by pointer.
package domain

import "time"

// SourceKind identifies how a source is fetched.
type SourceKind string

// Source kind constants.
const (
	SourceKindRSS SourceKind = "rss"
	SourceKindAPI SourceKind = "api"
)

// Source is a configured news outlet. Loaded once per run, immutable.
type Source struct {
	ID                string
	Name              string
	Kind              SourceKind
	URL               string
	CredentialEnv     string
	DeclaredLean      string
	Enabled           bool
	RequestsPerMinute int
	FieldMap          FieldMap
}

// FieldMap maps API response fields to article fields. Zero values fall
// back to the literal field names.
type FieldMap struct {
	Items       string
	Title       string
	URL         string
	Content     string
	PublishedAt string
	Author      string
}

// Article is a single normalized news item.
type Article struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Group is a set of articles judged to cover the same story.
type Group struct {
	ID               string    `json:"id"`
	MemberArticleIDs []string  `json:"member_article_ids"`
	Sources          []string  `json:"sources"`
	Centroid         []float32 `json:"-"`
	SourceDiversity  float64   `json:"source_diversity"`
	CoverageGaps     []string  `json:"coverage_gaps"`
}

// IndicatorKind classifies a bias indicator.
type IndicatorKind string

// Indicator kind constants.
const (
	IndicatorLoadedLanguage IndicatorKind = "loaded_language"
	IndicatorAttribution    IndicatorKind = "attribution"
	IndicatorFraming        IndicatorKind = "framing"
	IndicatorOmission       IndicatorKind = "omission"
)

// Confidence levels for bias indicators and rules.
type Confidence string

// Confidence constants, ordered low < medium < high.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank returns the ordering rank of a confidence level.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return -1
	}
}

// BiasIndicator is a single matched bias rule instance. Append-only,
// attached to an article or summary by SubjectID.
type BiasIndicator struct {
	Kind       IndicatorKind `json:"kind"`
	SubjectID  string        `json:"subject_id"`
	Matched    string        `json:"matched"`
	Context    string        `json:"context"`
	Confidence Confidence    `json:"confidence"`
	Weight     float64       `json:"weight"`
}

// ValidationStatus records the outcome of summary validation.
type ValidationStatus string

// Validation status constants.
const (
	ValidationAccepted ValidationStatus = "accepted"
	ValidationFailed   ValidationStatus = "failed"
)

// Summary is an LLM-generated, citation-bearing synthesis of a group.
type Summary struct {
	ID            string            `json:"id"`
	GroupID       string            `json:"group_id"`
	Text          string            `json:"text"`
	Citations     map[string]string `json:"citations"`
	Model         string            `json:"model"`
	Temperature   float32           `json:"temperature"`
	PromptVersion string            `json:"prompt_version"`
	Retries       int               `json:"retries"`
	Status        ValidationStatus  `json:"validation_status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// GroupFailure records why a group produced no summary.
type GroupFailure struct {
	GroupID  string `json:"group_id"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// Group failure reason constants.
const (
	FailureIneligible = "ineligible"
	FailureQuota      = "quota"
	FailurePermanent  = "permanent"
	FailureTransient  = "transient"
)

// StageCounts holds per-stage counters for a run.
type StageCounts struct {
	SourcesConfigured int `json:"sources_configured"`
	SourcesFailed     int `json:"sources_failed"`
	ArticlesFetched   int `json:"articles_fetched"`
	ArticlesCached    int `json:"articles_cached"`
	ArticlesEmbedded  int `json:"articles_embedded"`
	GroupsFormed      int `json:"groups_formed"`
	ArticlesUngrouped int `json:"articles_ungrouped"`
	SummariesCreated  int `json:"summaries_created"`
	SummariesFailed   int `json:"summaries_failed"`
	Indicators        int `json:"bias_indicators"`
}

// RunReport is the per-invocation outcome handed downstream.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Partial    bool           `json:"partial"`
	Counts     StageCounts    `json:"counts"`
	Failures   []GroupFailure `json:"failures"`
	BiasTotals map[string]int `json:"bias_totals"`
}
