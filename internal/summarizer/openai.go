package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/talk-less/talkless/internal/observability"
)

// OpenAI model constants.
const (
	ModelGPT4oMini = "gpt-4o-mini"

	defaultOpenAIModel = ModelGPT4oMini

	openaiRateLimiterBurst = 5
)

// OpenAICompleter implements the Completer interface for OpenAI chat
// completions.
type OpenAICompleter struct {
	client      *openai.Client
	rateLimiter *rate.Limiter
}

// OpenAIConfig holds configuration for the OpenAI completer.
type OpenAIConfig struct {
	APIKey    string
	RateLimit float64 // requests per second
}

// NewOpenAICompleter creates a new OpenAI completion provider.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAICompleter{
		client:      openai.NewClient(cfg.APIKey),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
	}
}

// Name returns the provider identifier.
func (p *OpenAICompleter) Name() ProviderName {
	return ProviderOpenAI
}

// Complete executes one chat completion request.
func (p *OpenAICompleter) Complete(ctx context.Context, req Request) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, &ProviderError{Kind: ErrKindTransient, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})

	observability.LLMRequestDuration.WithLabelValues(string(ProviderOpenAI), model).Observe(time.Since(start).Seconds())

	if err != nil {
		return Response{}, &ProviderError{Kind: classifyOpenAIError(err), Err: fmt.Errorf("openai completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return Response{}, &ProviderError{Kind: ErrKindTransient, Err: errors.New("openai completion: empty response")}
	}

	observability.LLMTokens.WithLabelValues(string(ProviderOpenAI), model, "prompt").Add(float64(resp.Usage.PromptTokens))
	observability.LLMTokens.WithLabelValues(string(ProviderOpenAI), model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return Response{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// classifyOpenAIError maps API failures onto the retry taxonomy: 429 is a
// quota problem, server errors and timeouts are transient, remaining
// client errors are permanent.
func classifyOpenAIError(err error) ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return ErrKindQuota
		case apiErr.HTTPStatusCode >= 500:
			return ErrKindTransient
		case apiErr.HTTPStatusCode >= 400:
			return ErrKindPermanent
		}
	}

	return ErrKindTransient
}
