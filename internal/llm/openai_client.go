// ABOUTME: OpenAI client for patient-facing diagnosis explanations
// ABOUTME: Uses gpt-4o-mini by default (configurable) with retry and per-call timeout
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/dermacheck/internal/models"
	"github.com/harper/dermacheck/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
)

const systemPrompt = `You are a helpful assistant that explains dermatology results to patients.

Convert the structured diagnostic output into a friendly, clear explanation suitable for a patient with no medical background.

Follow these rules:
- Do not include internal thoughts or <think> tags.
- Do not describe your reasoning.
- Use the diagnosis name once, and explain it in simple terms.
- Include the confidence value exactly as given, e.g. "with a confidence of 78.8%".
- Use a calm, reassuring tone.
- Limit the explanation to a single paragraph of at most three sentences.`

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:     apiKey,
		ChatModel:  DefaultChatModel,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}
	model := config.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		chatModel:  model,
		timeout:    timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}, nil
}

// Explain implements Explainer by asking the chat model to rephrase the result
func (c *OpenAIClient) Explain(ctx context.Context, d *models.Diagnosis, _ *models.DiseaseInfo) (string, error) {
	if d == nil {
		return NoDiagnosisExplanation, nil
	}

	userPrompt := fmt.Sprintf("Here is the input:\n%s\nExplanation:", FormatResult(d))

	var text string
	err := util.Retry(ctx, c.maxRetries+1, c.retryDelay, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			Temperature: 0.7,
		})
		if err != nil {
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			return fmt.Errorf("attempt %d: %w", attempt+1, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
		}

		text = CleanExplanation(resp.Choices[0].Message.Content)
		if text == "" {
			return fmt.Errorf("attempt %d: empty explanation", attempt+1)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate explanation: %w", err)
	}
	return text, nil
}
