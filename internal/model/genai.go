package model

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"sigil/internal/logging"
)

// GenAIInvoker generates replies through Google's Gemini API.
type GenAIInvoker struct {
	client          *genai.Client
	model           string
	maxOutputTokens int
}

// NewGenAIInvoker creates a GenAI-backed invoker.
func NewGenAIInvoker(apiKey, model string, maxOutputTokens int) (*GenAIInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIInvoker{
		client:          client,
		model:           model,
		maxOutputTokens: maxOutputTokens,
	}, nil
}

// Invoke sends the prompt and returns the reply text.
func (gi *GenAIInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryModel, "Invoke")
	defer timer.Stop()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	var cfg *genai.GenerateContentConfig
	if gi.maxOutputTokens > 0 {
		cfg = &genai.GenerateContentConfig{
			MaxOutputTokens: int32(gi.maxOutputTokens),
		}
	}

	resp, err := gi.client.Models.GenerateContent(ctx, gi.model, contents, cfg)
	if err != nil {
		logging.Get(logging.CategoryModel).Error("GenAI generate failed: %v", err)
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	logging.ModelDebug("Invoke: reply=%d chars", len(text))
	return text, nil
}

// Name returns the invoker name.
func (gi *GenAIInvoker) Name() string {
	return fmt.Sprintf("genai:%s", gi.model)
}
