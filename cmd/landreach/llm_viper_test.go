package main

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLLMViperAzureFallback(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	viper.Set("llm.provider", "azure")
	viper.Set("llm.endpoint", "https://generic.example/v1")
	viper.Set("llm.api_key", "generic-key")
	viper.Set("llm.model", "gpt-4o-mini")

	if got := llmEndpointFromViper(); got != "https://generic.example/v1" {
		t.Fatalf("endpoint fallback = %q", got)
	}
	if got := llmAPIKeyFromViper(); got != "generic-key" {
		t.Fatalf("api key fallback = %q", got)
	}

	viper.Set("llm.azure.endpoint", "https://azure.example")
	viper.Set("llm.azure.api_key", "azure-key")
	viper.Set("llm.azure.deployment", "my-deployment")

	if got := llmEndpointFromViper(); got != "https://azure.example" {
		t.Fatalf("azure endpoint = %q", got)
	}
	if got := llmAPIKeyFromViper(); got != "azure-key" {
		t.Fatalf("azure api key = %q", got)
	}
	if got := llmModelFromViper(); got != "my-deployment" {
		t.Fatalf("azure model = %q", got)
	}
}

func TestLLMViperDefaultsToOpenAI(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	if got := llmProviderFromViper(); got != "openai" {
		t.Fatalf("provider = %q", got)
	}
}
