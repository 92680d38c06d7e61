package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockClient produces deterministic unit vectors derived from the input
// text. Identical text always embeds to the identical vector, which is
// what local development and the test suite rely on.
type MockClient struct {
	dim int
}

func NewMockClient(dim int) *MockClient {
	return &MockClient{dim: dim}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dim)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	var norm float64
	for i := range vec {
		// xorshift64: cheap, deterministic, well spread.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state)) / math.MaxInt64
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
