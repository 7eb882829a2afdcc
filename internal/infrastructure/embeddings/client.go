package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/config"
)

// Client talks to the embedding inference server. The server returns one
// embedding per input token; Encode mean-pools them over the attention mask
// into a single fixed-dimension vector per text.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates an embedding client for the configured inference server
func NewClient(cfg *config.EmbeddingConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger.With().Str("component", "embeddings").Logger(),
	}
}

type encodeRequest struct {
	Texts []string `json:"texts"`
}

type encodeResponse struct {
	// TokenEmbeddings[i][j] is the embedding of token j of text i.
	TokenEmbeddings [][][]float64 `json:"token_embeddings"`
	// AttentionMask[i][j] is 1 for real tokens, 0 for padding.
	AttentionMask [][]int `json:"attention_mask"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Encode returns one mean-pooled vector per input text, in input order
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(encodeRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	var out encodeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return nil, fmt.Errorf("embedding server returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("embedding server returned %d", resp.StatusCode)
	}

	if len(out.TokenEmbeddings) != len(texts) || len(out.AttentionMask) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d embeddings for %d texts",
			len(out.TokenEmbeddings), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i := range out.TokenEmbeddings {
		vec, err := meanPool(out.TokenEmbeddings[i], out.AttentionMask[i])
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// meanPool averages token embeddings weighted by the attention mask
func meanPool(tokens [][]float64, mask []int) ([]float64, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token embeddings")
	}
	if len(mask) != len(tokens) {
		return nil, fmt.Errorf("attention mask length %d does not match %d tokens", len(mask), len(tokens))
	}

	dim := len(tokens[0])
	sum := make([]float64, dim)
	count := 0

	for i, tok := range tokens {
		if mask[i] == 0 {
			continue
		}
		if len(tok) != dim {
			return nil, fmt.Errorf("inconsistent embedding dimension: %d vs %d", len(tok), dim)
		}
		for j, v := range tok {
			sum[j] += v
		}
		count++
	}

	if count == 0 {
		return nil, fmt.Errorf("attention mask is all zeros")
	}

	for j := range sum {
		sum[j] /= float64(count)
	}

	return sum, nil
}
