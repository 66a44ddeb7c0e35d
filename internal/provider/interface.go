// Package provider selects and constructs the chat model backend at runtime.
// Supported backends: Mistral, OpenAI, Azure OpenAI, Ollama, Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported inference providers.
type Backend string

const (
	// BackendMistral selects the Mistral "La Plateforme" API.
	BackendMistral Backend = "mistral"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderMistral holds Mistral API settings. The API is OpenAI-compatible,
// so it shares the OpenAI client with a different base URL.
type ProviderMistral struct {
	// APIKey authenticates against the Mistral API.
	APIKey string
	// Model is the chat model name (e.g. "mistral-large-latest").
	Model string
	// BaseURL overrides the default https://api.mistral.ai/v1 endpoint.
	BaseURL string
}

// ProviderOpenAI holds OpenAI API settings.
type ProviderOpenAI struct {
	// APIKey authenticates against the OpenAI API.
	APIKey string
	// Model is the chat model name (e.g. "gpt-4o").
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI Service settings.
type ProviderAzureOpenAI struct {
	// APIKey authenticates against the Azure OpenAI resource.
	APIKey string
	// Endpoint is the resource endpoint URL.
	Endpoint string
	// Deployment is the model deployment name.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderOllama holds local Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the local model name (e.g. "llama3").
	Model string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey authenticates against AI Studio.
	APIKey string
	// Model is the Gemini model name (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Mistral     ProviderMistral
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ollama      ProviderOllama
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate checks that the section selected by Backend carries everything its
// constructor needs, so startup fails with a clear message instead of the
// first request failing opaquely.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMistral:
		if c.Mistral.APIKey == "" {
			return fmt.Errorf("provider: MISTRAL_API_KEY is required for mistral backend")
		}
		if c.Mistral.Model == "" {
			return fmt.Errorf("provider: MISTRAL_MODEL is required for mistral backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: OLLAMA_HOST is required for ollama backend")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: %s", c.Backend, strings.Join(backendNames(), ", "))
	}
	return nil
}

// DefaultModel returns the configured model name for the selected backend.
func (c *Config) DefaultModel() string {
	switch c.Backend {
	case BackendMistral:
		return c.Mistral.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendOllama:
		return c.Ollama.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

func backendNames() []string {
	return []string{
		string(BackendMistral),
		string(BackendOpenAI),
		string(BackendAzure),
		string(BackendOllama),
		string(BackendGemini),
	}
}
