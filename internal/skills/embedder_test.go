package skills

import (
	"context"
	"sync"
)

const tableDim = 64

// tableEmbedder returns fixed vectors for known phrases and a fresh one-hot
// vector for every unknown phrase, so distinct unknown phrases are orthogonal.
type tableEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	assigned map[string]int
	calls    [][]string
	err      error
}

func newTableEmbedder(vectors map[string][]float32) *tableEmbedder {
	padded := make(map[string][]float32, len(vectors))
	for k, v := range vectors {
		p := make([]float32, tableDim)
		copy(p, v)
		padded[k] = p
	}
	return &tableEmbedder{vectors: padded, assigned: map[string]int{}}
}

func (e *tableEmbedder) Embed(_ context.Context, phrases []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, append([]string(nil), phrases...))
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(phrases))
	for i, p := range phrases {
		if v, ok := e.vectors[p]; ok {
			out[i] = v
			continue
		}
		idx, ok := e.assigned[p]
		if !ok {
			idx = 8 + len(e.assigned)
			e.assigned[p] = idx
		}
		v := make([]float32, tableDim)
		v[idx] = 1
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type embedFunc func(ctx context.Context, phrases []string) ([][]float32, error)

func (f embedFunc) Embed(ctx context.Context, phrases []string) ([][]float32, error) {
	return f(ctx, phrases)
}
