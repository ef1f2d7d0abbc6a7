package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GenerateClient calls Ollama's non-streaming generate endpoint.
type GenerateClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewGenerateClient creates an Ollama generation client.
func NewGenerateClient(baseURL, model string) *GenerateClient {
	return &GenerateClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func (c *GenerateClient) WithHTTPClient(hc *http.Client) *GenerateClient {
	c.client = hc
	return c
}

type ollamaGenerateReq struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResp struct {
	Response string `json:"response"`
}

// GenerateJSON runs one prompt with format=json, so the model output is a
// single JSON object.
func (c *GenerateClient) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	body, _ := json.Marshal(ollamaGenerateReq{
		Model:  c.model,
		System: system,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}

	var result ollamaGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	return result.Response, nil
}
