package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"vetter/internal/models"
)

// SDKClient calls the chat completions endpoint with the official OpenAI SDK.
// The SDK's own retries are disabled; callers own the retry policy.
type SDKClient struct {
	client openai.Client
	model  string
}

func NewSDKClient(apiKey, baseURL, modelName string, timeout time.Duration) *SDKClient {
	if modelName == "" {
		modelName = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &SDKClient{
		client: openai.NewClient(opts...),
		model:  modelName,
	}
}

func (c *SDKClient) Complete(ctx context.Context, messages []models.Message) (*Choice, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toSDKMessages(messages),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	first := resp.Choices[0]
	return &Choice{
		Message:      models.AssistantMessage(first.Message.Content),
		FinishReason: string(first.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func toSDKMessages(history []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
