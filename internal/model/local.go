package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sigil/internal/logging"
)

// LocalInvoker calls an Ollama-compatible generate endpoint.
type LocalInvoker struct {
	endpoint   string
	model      string
	numPredict int
	client     *http.Client
}

// NewLocalInvoker creates an invoker for the given generate endpoint.
func NewLocalInvoker(endpoint, model string, numPredict int, timeout time.Duration) *LocalInvoker {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &LocalInvoker{
		endpoint:   endpoint,
		model:      model,
		numPredict: numPredict,
		client:     &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Invoke sends the prompt and returns the full reply text.
func (li *LocalInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryModel, "Invoke")
	defer timer.Stop()

	reqBody := generateRequest{
		Model:   li.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{NumPredict: li.numPredict},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	logging.ModelDebug("Invoke: model=%s prompt=%d chars", li.model, len(prompt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, li.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := li.client.Do(req)
	if err != nil {
		logging.Get(logging.CategoryModel).Error("Model request failed: %v", err)
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logging.Get(logging.CategoryModel).Error("Model API returned %d: %s", resp.StatusCode, detail)
		return "", fmt.Errorf("model API returned status %d: %s", resp.StatusCode, detail)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	logging.ModelDebug("Invoke: reply=%d chars", len(genResp.Response))
	return genResp.Response, nil
}

// Name returns the invoker name.
func (li *LocalInvoker) Name() string {
	return fmt.Sprintf("local:%s", li.model)
}
