package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// Name identifies the backend in config and logs.
	Name = "gemini"

	defaultModel      = "text-embedding-004"
	defaultMaxRetries = 3
	defaultTaskType   = "SEMANTIC_SIMILARITY"

	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 30 * time.Second
)

var sleep = utils.WaitFor

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the Gemini embedder.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	// RequestsPerSecond limits outgoing calls; zero disables the limit.
	RequestsPerSecond float64
}

// Embedder calls the Gemini embedding API with one request per phrase batch.
type Embedder struct {
	models     contentEmbedder
	model      string
	dimensions int
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates an Embedder configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, cfg, log), nil
}

func newEmbedder(models contentEmbedder, cfg Config, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Embedder{
		models:     models,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: maxRetries,
		limiter:    limiter,
		logger:     logger.WithEmbedding(log, Name, model),
	}
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Embed returns one vector per phrase in input order.
func (e *Embedder) Embed(ctx context.Context, phrases []string) ([][]float32, error) {
	if len(phrases) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(phrases))
	for i, p := range phrases {
		contents[i] = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: p}},
		}
	}

	config := &genai.EmbedContentConfig{TaskType: defaultTaskType}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		config.OutputDimensionality = &dims
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := e.models.EmbedContent(ctx, e.model, contents, config)
		if err == nil {
			return vectors(resp, len(phrases))
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == e.maxRetries {
			break
		}

		e.logger.Warn("gemini embed request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("phrases", len(phrases)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func vectors(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil {
		return nil, errors.New("gemini api returned empty response")
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d phrases", len(resp.Embeddings), want)
	}

	out := make([][]float32, want)
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini api returned empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

var retryHint = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9.]+) ?(s|sec|secs|second|seconds)\b`)

// retryDelay reports whether err is transient and how long to wait before the
// next attempt. Quota errors asking for a long pause are not retried.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return utils.Backoff(baseRetryDelay, maxRetryDelay, attempt), true
	case http.StatusTooManyRequests:
		m := retryHint.FindStringSubmatch(apiErr.Message)
		if m == nil {
			return utils.Backoff(baseRetryDelay, maxRetryDelay, attempt), true
		}
		secs, parseErr := strconv.ParseFloat(m[1], 64)
		if parseErr != nil {
			return 0, false
		}
		delay := time.Duration(secs * float64(time.Second))
		if delay > maxRetryDelay {
			return 0, false
		}
		return delay, true
	default:
		return 0, false
	}
}
