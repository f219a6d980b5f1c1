package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newServer(t *testing.T, handler func(req embeddingRequest) (int, string)) (*httptest.Server, *[]embeddingRequest) {
	t.Helper()

	var seen []embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func TestEmbedReordersByIndex(t *testing.T) {
	srv, seen := newServer(t, func(embeddingRequest) (int, string) {
		return http.StatusOK, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`
	})

	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultModel, e.Model())

	vectors, err := e.Embed(context.Background(), []string{"python", "go"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	require.Len(t, *seen, 1)
	assert.Equal(t, []string{"python", "go"}, (*seen)[0].Input)
	assert.Equal(t, defaultModel, (*seen)[0].Model)
	assert.Equal(t, 2, (*seen)[0].Dimensions)
}

func TestEmbedMissingItem(t *testing.T) {
	srv, _ := newServer(t, func(embeddingRequest) (int, string) {
		return http.StatusOK, `{
			"object": "list",
			"model": "m",
			"data": [{"object": "embedding", "index": 0, "embedding": [1]}],
			"usage": {"prompt_tokens": 1, "total_tokens": 1}
		}`
	})

	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "m"}, zap.NewNop())
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a", "b"})
	require.ErrorContains(t, err, "no embedding for phrase 1")
}

func TestEmbedServerError(t *testing.T) {
	srv, _ := newServer(t, func(embeddingRequest) (int, string) {
		return http.StatusBadRequest, `{"error": {"message": "bad input", "type": "invalid_request_error"}}`
	})

	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, zap.NewNop())
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "openai embeddings request")
}

func TestEmbedEmptyInputSkipsRequest(t *testing.T) {
	srv, seen := newServer(t, func(embeddingRequest) (int, string) {
		return http.StatusInternalServerError, ""
	})

	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, *seen)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	require.Error(t, err)
}
