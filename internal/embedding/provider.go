package embedding

import (
	"fmt"

	"github.com/loomlabs/loom/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an embedding client based on the provider name. The
// dimension applies to the mock provider; the OpenAI model's dimension
// is fixed by the model itself.
func NewClient(provider, apiKey string, dim int) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("EMBEDDING_API_KEY is required for the OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(dim), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}
