package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/talk-less/talkless/internal/observability"
)

// Anthropic model constants.
const (
	ModelClaudeHaiku = "claude-haiku-4.5"

	defaultAnthropicModel = ModelClaudeHaiku

	anthropicRateLimiterBurst = 5
	anthropicMaxTokensDefault = 2048
)

// AnthropicCompleter implements the Completer interface for the Anthropic
// Messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	rateLimiter *rate.Limiter
}

// AnthropicConfig holds configuration for the Anthropic completer.
type AnthropicConfig struct {
	APIKey    string
	RateLimit float64 // requests per second
}

// NewAnthropicCompleter creates a new Anthropic completion provider.
func NewAnthropicCompleter(cfg AnthropicConfig) *AnthropicCompleter {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &AnthropicCompleter{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), anthropicRateLimiterBurst),
	}
}

// Name returns the provider identifier.
func (p *AnthropicCompleter) Name() ProviderName {
	return ProviderAnthropic
}

// Complete executes one Messages API request.
func (p *AnthropicCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, &ProviderError{Kind: ErrKindTransient, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokensDefault
	}

	start := time.Now()

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})

	observability.LLMRequestDuration.WithLabelValues(string(ProviderAnthropic), model).Observe(time.Since(start).Seconds())

	if err != nil {
		return Response{}, &ProviderError{Kind: classifyAnthropicError(err), Err: fmt.Errorf("anthropic completion: %w", err)}
	}

	var text strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return Response{}, &ProviderError{Kind: ErrKindTransient, Err: errors.New("anthropic completion: empty response")}
	}

	observability.LLMTokens.WithLabelValues(string(ProviderAnthropic), model, "prompt").Add(float64(resp.Usage.InputTokens))
	observability.LLMTokens.WithLabelValues(string(ProviderAnthropic), model, "completion").Add(float64(resp.Usage.OutputTokens))

	return Response{
		Text:             text.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// classifyAnthropicError maps API failures onto the retry taxonomy using
// the same status-code rules as the OpenAI completer.
func classifyAnthropicError(err error) ErrorKind {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return ErrKindQuota
		case apiErr.StatusCode >= 500:
			return ErrKindTransient
		case apiErr.StatusCode >= 400:
			return ErrKindPermanent
		}
	}

	return ErrKindTransient
}
