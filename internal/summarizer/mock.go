package summarizer

import (
	"context"
	"errors"
	"sync"
)

// MockCompleter implements the Completer interface with scripted replies
// for testing. Replies are consumed in order; the last reply repeats once
// the script is exhausted.
type MockCompleter struct {
	mu       sync.Mutex
	script   []mockReply
	requests []Request
}

type mockReply struct {
	text string
	err  error
}

// NewMockCompleter creates an empty mock completer.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Reply appends a successful scripted completion.
func (p *MockCompleter) Reply(text string) *MockCompleter {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.script = append(p.script, mockReply{text: text})

	return p
}

// Fail appends a scripted failure of the given kind.
func (p *MockCompleter) Fail(kind ErrorKind) *MockCompleter {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.script = append(p.script, mockReply{err: &ProviderError{Kind: kind, Err: errors.New("scripted failure")}})

	return p
}

// Requests returns a copy of the requests received so far.
func (p *MockCompleter) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Request, len(p.requests))
	copy(out, p.requests)

	return out
}

// Name returns the provider identifier.
func (p *MockCompleter) Name() ProviderName {
	return ProviderMock
}

// Complete returns the next scripted reply.
func (p *MockCompleter) Complete(_ context.Context, req Request) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if len(p.script) == 0 {
		return Response{}, &ProviderError{Kind: ErrKindPermanent, Err: errors.New("mock completer has no script")}
	}

	reply := p.script[0]
	if len(p.script) > 1 {
		p.script = p.script[1:]
	}

	if reply.err != nil {
		return Response{}, reply.err
	}

	return Response{Text: reply.text}, nil
}
