// Package hashing provides an offline embedder that maps phrases into a fixed
// vector space by feature hashing of words and character trigrams.
package hashing

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	// Name identifies the backend in config and logs.
	Name = "hashing"

	DefaultDimension = 512

	wordWeight    = 1.0
	trigramWeight = 0.5
)

// Embedder is deterministic: identical phrases always produce identical
// vectors, and phrases sharing words or spelling land close together.
type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

// Model includes the dimension, e.g. "hashing-512".
func (e *Embedder) Model() string {
	return Name + "-" + strconv.Itoa(e.dimension)
}

func (e *Embedder) Embed(ctx context.Context, phrases []string) ([][]float32, error) {
	out := make([][]float32, len(phrases))
	for i, phrase := range phrases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(phrase)
	}
	return out, nil
}

func (e *Embedder) vector(phrase string) []float32 {
	acc := make([]float64, e.dimension)
	text := strings.ToLower(strings.TrimSpace(phrase))

	for _, word := range words(text) {
		e.add(acc, "w:"+word, wordWeight)
	}

	padded := []rune(" " + text + " ")
	for i := 0; i+3 <= len(padded); i++ {
		e.add(acc, "t:"+string(padded[i:i+3]), trigramWeight)
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// add uses the low bits for the bucket and the top bit for the sign.
func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	bucket := int(h % uint64(e.dimension))
	if h>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#')
	})
}
