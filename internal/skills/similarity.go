package skills

import (
	"context"
	"math"
)

// Embedder turns phrases into fixed-length vectors. Implementations return
// exactly one vector per input phrase, in input order.
type Embedder interface {
	Embed(ctx context.Context, phrases []string) ([][]float32, error)
}

// SimilarityMatrix returns the cosine similarity of every phrase in a against
// every phrase in b. Each list is embedded with one batched call; an empty
// list yields an empty matrix without calling the embedder.
func SimilarityMatrix(ctx context.Context, embedder Embedder, a, b []string) ([][]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return emptyMatrix(len(a)), nil
	}

	va, err := embedUnique(ctx, embedder, a, "left")
	if err != nil {
		return nil, err
	}
	vb, err := embedUnique(ctx, embedder, b, "right")
	if err != nil {
		return nil, err
	}

	return cosineMatrix(va, vb)
}

func emptyMatrix(rows int) [][]float64 {
	matrix := make([][]float64, rows)
	for i := range matrix {
		matrix[i] = []float64{}
	}
	return matrix
}

// embedUnique embeds each distinct phrase once and expands the result back to
// the input positions.
func embedUnique(ctx context.Context, embedder Embedder, phrases []string, stage string) ([][]float32, error) {
	index := make(map[string]int, len(phrases))
	unique := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if _, ok := index[p]; ok {
			continue
		}
		index[p] = len(unique)
		unique = append(unique, p)
	}

	vectors, err := embedder.Embed(ctx, unique)
	if err != nil {
		return nil, &EmbeddingBackendError{Stage: stage, Err: err}
	}
	if len(vectors) != len(unique) {
		return nil, backendError(stage, "got %d vectors for %d phrases", len(vectors), len(unique))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, backendError(stage, "empty vector for %q", unique[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, backendError(stage, "vector for %q has dimension %d, want %d", unique[i], len(v), dim)
		}
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, backendError(stage, "vector for %q contains non-finite values", unique[i])
			}
		}
	}

	expanded := make([][]float32, len(phrases))
	for i, p := range phrases {
		expanded[i] = vectors[index[p]]
	}
	return expanded, nil
}

func cosineMatrix(a, b [][]float32) ([][]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return emptyMatrix(len(a)), nil
	}
	if len(a[0]) != len(b[0]) {
		return nil, backendError("compare", "dimension mismatch: %d vs %d", len(a[0]), len(b[0]))
	}

	matrix := make([][]float64, len(a))
	for i, va := range a {
		row := make([]float64, len(b))
		for j, vb := range b {
			row[j] = cosine(va, vb)
		}
		matrix[i] = row
	}
	return matrix, nil
}

// cosine is 0 when either vector has zero norm.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / math.Sqrt(na*nb)
	switch {
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}
