// Package observability exposes Prometheus metrics for the pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArticlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_articles_ingested_total",
		Help: "The total number of articles ingested",
	}, []string{"source"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_fetch_errors_total",
		Help: "The total number of failed source fetches",
	}, []string{"source"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talkless_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_cache_ops_total",
		Help: "Content cache operations by outcome",
	}, []string{"op", "outcome"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talkless_llm_request_duration_seconds",
		Help:    "Duration of LLM completion requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "model"})

	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_llm_tokens_total",
		Help: "LLM token usage",
	}, []string{"provider", "model", "kind"})

	SummariesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_summaries_validated_total",
		Help: "Summary validation outcomes",
	}, []string{"outcome"})

	BiasIndicators = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talkless_bias_indicators_total",
		Help: "Bias indicators detected by kind",
	}, []string{"kind"})

	GroupsFormed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talkless_groups_formed",
		Help: "Number of groups formed in the last run",
	})
)

// Cache op label values.
const (
	CacheOpGet       = "get"
	CacheOpSet       = "set"
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeError     = "error"
	OutcomeOK        = "ok"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeExhausted = "exhausted"
)
