// Package summarizer turns eligible article groups into validated,
// citation-bearing summaries through a configurable LLM provider.
package summarizer

import (
	"context"
	"errors"
	"fmt"
)

// ProviderName identifies an LLM provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderMock      ProviderName = "mock"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

// Error kind constants.
const (
	ErrKindTransient ErrorKind = "transient"
	ErrKindPermanent ErrorKind = "permanent"
	ErrKindQuota     ErrorKind = "quota"
)

// ProviderError is a typed completion failure. Transient errors may be
// retried; permanent and quota errors abort the group.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind; unclassified errors count as transient.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}

	return ErrKindTransient
}

// Request is a single completion call.
type Request struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Prompt      string
}

// Response is the completion result.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer defines the interface for LLM completion providers. Errors
// returned from Complete are *ProviderError.
type Completer interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Complete executes one completion request.
	Complete(ctx context.Context, req Request) (Response, error)
}
