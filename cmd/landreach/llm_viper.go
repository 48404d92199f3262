package main

import (
	"strings"

	"github.com/spf13/viper"
)

func llmProviderFromViper() string {
	provider := strings.ToLower(strings.TrimSpace(viper.GetString("llm.provider")))
	if provider == "" {
		return "openai"
	}
	return provider
}

func llmEndpointFromViper() string {
	if llmProviderFromViper() == "azure" {
		return firstNonEmpty(viper.GetString("llm.azure.endpoint"), viper.GetString("llm.endpoint"))
	}
	return strings.TrimSpace(viper.GetString("llm.endpoint"))
}

func llmAPIKeyFromViper() string {
	if llmProviderFromViper() == "azure" {
		return firstNonEmpty(viper.GetString("llm.azure.api_key"), viper.GetString("llm.api_key"))
	}
	return strings.TrimSpace(viper.GetString("llm.api_key"))
}

func llmModelFromViper() string {
	if llmProviderFromViper() == "azure" {
		return firstNonEmpty(viper.GetString("llm.azure.deployment"), viper.GetString("llm.model"))
	}
	return strings.TrimSpace(viper.GetString("llm.model"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
