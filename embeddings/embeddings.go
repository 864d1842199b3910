// Package embeddings computes fixed-length float vectors for text through
// an Ollama-compatible HTTP endpoint.
package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bookmark/html"
)

// Provider is an embedding capability: given text, return a vector.
type Provider interface {
	// Name returns the provider name for display/logging.
	Name() string

	// Available checks if this provider is ready to use.
	Available() bool

	// Embed returns the embedding vector for the given text.
	Embed(text string) ([]float64, error)
}

// Client talks to an Ollama-compatible embedding endpoint.
type Client struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewClient creates a client for the given host and model.
func NewClient(host, model string) *Client {
	return &Client{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

var _ Provider = (*Client)(nil)

func (c *Client) Name() string { return "ollama" }

// Available checks if the endpoint is reachable.
func (c *Client) Available() bool {
	resp, err := c.httpClient.Get(c.host + "/api/tags")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(text string) ([]float64, error) {
	req := embedRequest{
		Model: c.model,
		Input: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	resp, err := c.httpClient.Post(c.host+"/api/embed", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("endpoint returned empty embeddings")
	}

	return result.Embeddings[0], nil
}

// EmbedDocument extracts the visible text of a fetched page and embeds it.
func (c *Client) EmbedDocument(content []byte) ([]float64, error) {
	return c.Embed(html.Text(content))
}
