package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spigell/skillmatch/internal/logger"
	"go.uber.org/zap"
)

const (
	// Name identifies the backend in config and logs.
	Name = "openai"

	defaultModel = "text-embedding-3-small"
)

// Config configures the OpenAI embedder.
type Config struct {
	APIKey string
	// BaseURL points at an OpenAI compatible server; empty uses the public API.
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
}

// Embedder sends each phrase batch as a single embeddings request.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	client := openai.NewClient(opts...)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Embedder{
		client:     &client,
		model:      model,
		dimensions: cfg.Dimensions,
		logger:     logger.WithEmbedding(log, Name, model),
	}, nil
}

func (e *Embedder) Model() string {
	return e.model
}

// Embed returns one vector per phrase, ordered by the index the API reports.
func (e *Embedder) Embed(ctx context.Context, phrases []string) ([][]float32, error) {
	if len(phrases) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: phrases},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}

	e.logger.Debug("openai embeddings response",
		zap.Int("phrases", len(phrases)),
		zap.Int("items", len(resp.Data)),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	out := make([][]float32, len(phrases))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(out) {
			return nil, fmt.Errorf("openai returned embedding with index %d for %d phrases", item.Index, len(phrases))
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[item.Index] = vec
	}

	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for phrase %d", i)
		}
	}

	return out, nil
}
