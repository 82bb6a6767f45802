package service

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"estatechat/internal/config"
	"estatechat/internal/model"
)

// OpenAIClient adapts an OpenAI-compatible chat API to the TextCompleter
// contract. Any provider speaking the /chat/completions dialect works; the
// base URL comes from configuration.
type OpenAIClient struct {
	cfg    *config.OpenAIConfig
	client *openai.Client
	log    *zap.Logger
}

// NewOpenAIClient creates a completion client from configuration
func NewOpenAIClient(cfg *config.OpenAIConfig, log *zap.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}

	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		log:    log,
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c.cfg.Enabled
}

// Complete sends the assembled prompt plus prior turns and returns the raw
// model text. Prior turns map onto chat roles so the provider keeps its own
// notion of context alongside the history injected into the prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, history []model.Turn) (string, error) {
	if !c.cfg.Enabled {
		return "", fmt.Errorf("%w: missing API key", ErrCollaboratorUnavailable)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.Timeout)*time.Second)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Temperature: float32(c.cfg.ChatTemperature),
		TopP:        float32(c.cfg.ChatTopP),
		MaxTokens:   c.cfg.ChatMaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err), zap.String("model", c.cfg.ChatModel))
		return "", fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrCollaboratorUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

var _ TextCompleter = (*OpenAIClient)(nil)
