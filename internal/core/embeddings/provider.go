// Package embeddings maps article text into the vector space used by the
// grouper. The contract is narrow: vectors are unit-length and compared by
// cosine distance; which model produces them is configuration.
package embeddings

import (
	"context"
	"math"
)

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// DefaultDimensions is the default embedding width. A lightweight
// 384-dimensional space is enough for topical grouping.
const DefaultDimensions = 384

// Provider defines the interface for embedding providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Embed generates one unit-length vector per input text. A nil vector
	// at position i means text i could not be embedded; callers exclude
	// those items rather than failing the batch.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the output dimensions of this provider.
	Dimensions() int
}

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}

	return v
}
