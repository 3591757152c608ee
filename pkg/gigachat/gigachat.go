package gigachat

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type LLMBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ LLMBuilder = (*Config)(nil)

// Config targets the OpenAI-compatible GigaChat endpoint on Evolution
// Platform. ProjectID is required by the platform and travels in the request
// body alongside the sampling parameters.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://gigachat.api.cloud.ru/api/gigachat/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	ProjectID          string        `envconfig:"PROJECT_ID" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"GigaChat"`
	MaxCompletionToken *int          `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"512"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	TopP               float32       `envconfig:"TOP_P" split_words:"true" default:"0"`
	RepetitionPenalty  float32       `envconfig:"REPETITION_PENALTY" split_words:"true" default:"1"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(c.BaseURL, "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       strings.TrimSpace(c.Model),
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &c.Temperature,
		Timeout:     c.Timeout,
	}

	extra := map[string]any{}
	if pid := strings.TrimSpace(c.ProjectID); pid != "" {
		extra["project_id"] = pid
	}
	if c.TopP > 0 {
		extra["top_p"] = c.TopP
	}
	if c.RepetitionPenalty > 0 && c.RepetitionPenalty != 1 {
		extra["repetition_penalty"] = c.RepetitionPenalty
	}
	if len(extra) > 0 {
		conf.ExtraFields = extra
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("gigachat: create chat model: %w", err)
	}

	return m, nil
}

// NewClient creates a raw OpenAI SDK client for the GigaChat endpoint. The
// orchestrator talks to the model through eino; this client exists for the
// startup reachability probe.
func NewClient(cfg Config) *openaisdk.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}

	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if pid := strings.TrimSpace(cfg.ProjectID); pid != "" {
		opts = append(opts, option.WithHeader("X-Project-Id", pid))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}

// Ping issues a minimal completion to verify the credentials and endpoint.
func Ping(ctx context.Context, client *openaisdk.Client, modelName string) error {
	if client == nil {
		return fmt.Errorf("gigachat: nil client")
	}

	_, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(strings.TrimSpace(modelName)),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage("ping"),
		},
		MaxTokens: openaisdk.Int(1),
	})
	if err != nil {
		return fmt.Errorf("gigachat: ping: %w", err)
	}
	return nil
}
