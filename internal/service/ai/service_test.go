package ai

import (
	"context"
	"errors"
	"testing"

	"soilchat/internal/config"
)

func gatewayConfig(backend, provider, key string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{Backend: backend, Provider: provider},
		Providers: map[string]config.ProviderConfig{
			provider: {APIKey: key},
		},
	}
}

func TestNewGatewayWithoutKey(t *testing.T) {
	gw, err := NewGateway(context.Background(), gatewayConfig("genai", "gemini", ""))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if gw != nil {
		t.Fatalf("expected nil gateway, got %#v", gw)
	}
}

func TestNewGatewayErrorsReturnNilInterface(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "genai with non gemini provider", cfg: gatewayConfig("genai", "openai", "k")},
		{name: "unknown backend", cfg: gatewayConfig("grpc", "gemini", "k")},
		{name: "eino with unknown provider", cfg: gatewayConfig("eino", "mistral", "k")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewGateway(context.Background(), tt.cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if gw != nil {
				t.Fatalf("gateway must be a nil interface on error, got %#v", gw)
			}
		})
	}
}

func TestNewGatewayGenai(t *testing.T) {
	gw, err := NewGateway(context.Background(), gatewayConfig("genai", "gemini", "test-key"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if _, ok := gw.(*geminiGateway); !ok {
		t.Fatalf("expected gemini gateway, got %T", gw)
	}
}
