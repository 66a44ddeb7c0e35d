package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
)

// NewFromEnv constructs a chat model by reading provider configuration from
// environment variables. MODEL_PROVIDER selects the backend; each provider
// uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER              = mistral | openai | azure | ollama | gemini (default: mistral)
//
//	Mistral: MISTRAL_API_KEY, MISTRAL_MODEL (default: mistral-large-latest),
//	         MISTRAL_BASE_URL (default: https://api.mistral.ai/v1)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//
//	Shared:  MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.2)
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, *Config, error) {
	cfg := ConfigFromEnv()
	m, err := New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// ConfigFromEnv resolves a Config from environment variables without
// constructing a backend.
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendMistral))),
		Mistral: ProviderMistral{
			APIKey:  os.Getenv("MISTRAL_API_KEY"),
			Model:   getEnvOrDefault("MISTRAL_MODEL", "mistral-large-latest"),
			BaseURL: getEnvOrDefault("MISTRAL_BASE_URL", defaultMistralBaseURL),
		},
		OpenAI: ProviderOpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "llama3"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Tuning: SharedTuning{
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 4096),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		},
	}
}

// New constructs a chat model from an explicit Config using the backend's
// configured default model. It validates the config first so callers get a
// clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	return NewWithModel(ctx, cfg, "")
}

// NewWithModel constructs a chat model for the named model on the configured
// backend. An empty name selects the backend's configured default.
func NewWithModel(ctx context.Context, cfg *Config, modelName string) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = cfg.DefaultModel()
	}
	switch cfg.Backend {
	case BackendMistral:
		return newMistral(ctx, cfg, modelName)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg, modelName)
	case BackendAzure:
		return newAzure(ctx, cfg, modelName)
	case BackendOllama:
		return newOllama(ctx, cfg, modelName)
	case BackendGemini:
		return newGemini(ctx, cfg, modelName)
	default:
		// Validate already rejects unknown backends; kept for exhaustiveness.
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}

// Resolver returns a function that constructs a chat model for a per-request
// model name on the configured backend.
func Resolver(ctx context.Context, cfg *Config) func(name string) (model.ToolCallingChatModel, error) {
	return func(name string) (model.ToolCallingChatModel, error) {
		return NewWithModel(ctx, cfg, name)
	}
}

// ListModels returns the model names available on the configured backend.
// OpenAI-compatible backends (Mistral, OpenAI) are queried live; Azure and
// Gemini return the configured deployment/model; Ollama lists the locally
// pulled models.
func ListModels(ctx context.Context, cfg *Config) ([]string, error) {
	switch cfg.Backend {
	case BackendMistral:
		base := cfg.Mistral.BaseURL
		if base == "" {
			base = defaultMistralBaseURL
		}
		return listOpenAICompatible(ctx, base+"/models", cfg.Mistral.APIKey)
	case BackendOpenAI:
		return listOpenAICompatible(ctx, "https://api.openai.com/v1/models", cfg.OpenAI.APIKey)
	case BackendAzure:
		return []string{cfg.AzureOpenAI.Deployment}, nil
	case BackendOllama:
		return listOllama(ctx, cfg.Ollama.Host)
	case BackendGemini:
		return []string{cfg.Gemini.Model}, nil
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}

// listOpenAICompatible queries a GET /models endpoint speaking the OpenAI
// wire protocol.
func listOpenAICompatible(ctx context.Context, url, apiKey string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: building models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: listing models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("provider: listing models: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("provider: decoding models response: %w", err)
	}
	names := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// listOllama queries Ollama's /api/tags for locally pulled models.
func listOllama(ctx context.Context, host string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("provider: building tags request: %w", err)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: listing models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider: listing models: status %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("provider: decoding tags response: %w", err)
	}
	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
