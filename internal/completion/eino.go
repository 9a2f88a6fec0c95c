package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"vetter/internal/models"
)

// EinoClient talks to the completion API through an eino chat model.
type EinoClient struct {
	chatModel model.BaseChatModel
}

// NewEinoClient wraps an existing chat model.
func NewEinoClient(chatModel model.BaseChatModel) (*EinoClient, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	return &EinoClient{chatModel: chatModel}, nil
}

// NewOpenAIEinoClient builds the eino-ext OpenAI chat model for the given model name.
func NewOpenAIEinoClient(ctx context.Context, apiKey, baseURL, modelName string, timeout time.Duration) (*EinoClient, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init openai chat model: %w", err)
	}
	return NewEinoClient(chatModel)
}

func (c *EinoClient) Complete(ctx context.Context, messages []models.Message) (*Choice, error) {
	resp, err := c.chatModel.Generate(ctx, convertMessages(messages))
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}
	if resp == nil {
		return nil, ErrNoChoices
	}
	choice := &Choice{
		Message: models.AssistantMessage(resp.Content),
	}
	if meta := resp.ResponseMeta; meta != nil {
		choice.FinishReason = meta.FinishReason
		if meta.Usage != nil {
			choice.Usage = Usage{
				PromptTokens:     meta.Usage.PromptTokens,
				CompletionTokens: meta.Usage.CompletionTokens,
				TotalTokens:      meta.Usage.TotalTokens,
			}
		}
	}
	return choice, nil
}

func convertMessages(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
