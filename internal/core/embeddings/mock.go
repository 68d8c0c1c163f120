package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
)

// MockProvider implements the embedding Provider interface for testing.
// Each token hashes into a dimension bucket, so texts sharing words produce
// nearby vectors and unrelated texts stay far apart. Fully deterministic.
type MockProvider struct {
	dimensions int
	failOn     map[string]bool
}

// NewMockProvider creates a mock provider with the default dimensions.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithDimensions(DefaultDimensions)
}

// NewMockProviderWithDimensions creates a mock provider with custom dimensions.
func NewMockProviderWithDimensions(dims int) *MockProvider {
	return &MockProvider{dimensions: dims, failOn: make(map[string]bool)}
}

// FailOn makes Embed return a nil vector for texts containing marker,
// simulating a per-item embedding failure.
func (p *MockProvider) FailOn(marker string) {
	p.failOn[marker] = true
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName {
	return ProviderMock
}

// Dimensions returns the configured dimensions.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Embed derives deterministic unit vectors from token hashes.
func (p *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	for i, text := range texts {
		if p.shouldFail(text) {
			continue
		}

		vec := make([]float32, p.dimensions)

		for _, token := range strings.Fields(strings.ToLower(text)) {
			token = strings.Trim(token, `.,;:!?"'()[]`)
			if token == "" {
				continue
			}

			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			vec[int(h.Sum32())%p.dimensions]++
		}

		vectors[i] = Normalize(vec)
	}

	return vectors, nil
}

func (p *MockProvider) shouldFail(text string) bool {
	for marker := range p.failOn {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}
