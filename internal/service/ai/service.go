package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"soilchat/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// NewGateway builds the gateway selected by cfg.LLM. It returns
// ErrUnavailable when the active provider has no API key.
func NewGateway(ctx context.Context, cfg *config.Config) (Gateway, error) {
	provider, provCfg := cfg.ActiveProvider()
	if provCfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	switch cfg.LLM.Backend {
	case "", "genai":
		if provider != "gemini" {
			return nil, fmt.Errorf("genai backend only supports gemini, got %s", provider)
		}
		gw, err := newGeminiGateway(ctx, provCfg.APIKey, provCfg.Model)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case "eino":
		chatModel, err := newChatModel(ctx, provider, provCfg)
		if err != nil {
			return nil, err
		}
		return &chatModelGateway{chatModel: chatModel}, nil
	default:
		return nil, fmt.Errorf("invalid llm backend: %s", cfg.LLM.Backend)
	}
}

func newChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig) (model.BaseChatModel, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if cerr != nil {
			return nil, fmt.Errorf("create gemini client: %w", cerr)
		}
		name := provCfg.Model
		if name == "" {
			name = DefaultGeminiModel
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  name,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return chatModel, nil
}

// chatModelGateway adapts an eino chat model to Gateway.
type chatModelGateway struct {
	chatModel model.BaseChatModel
}

func (g *chatModelGateway) Generate(ctx context.Context, prompt string, img *Image) (string, error) {
	resp, err := g.chatModel.Generate(ctx, []*schema.Message{userMessage(prompt, img)})
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

func userMessage(prompt string, img *Image) *schema.Message {
	if img == nil || len(img.Data) == 0 {
		return &schema.Message{Role: schema.User, Content: prompt}
	}
	dataURL := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: prompt},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      dataURL,
					MIMEType: img.MIMEType,
				},
			},
		},
	}
}
