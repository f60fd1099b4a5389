package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// systemRole frames every classification call. The hard rules live in the
// guardrail engine, not here; the prompt only asks the model to propose.
const systemRole = "You are an AI strategy consultant. Follow the task instructions exactly and ground every claim in the provided context."

// OpenAIClient generates text via the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRole},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
