// Package llm abstracts the generative backend that turns structured
// changelog data into natural-language release notes.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/relnotary/relnotary/internal/config"
)

// Generator produces text from a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Provider identifies a generative backend implementation.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Factory is a function that creates a Generator.
type Factory func(apiKey, model string) Generator

// registry holds registered generator factories by provider.
var registry = make(map[Provider]Factory)

// Register registers a generator factory for a provider.
func Register(provider Provider, factory Factory) {
	registry[provider] = factory
}

// New creates a generator based on the configured provider.
func New(cfg config.LLMConfig) (Generator, error) {
	factory, ok := registry[Provider(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return factory(cfg.APIKey, cfg.Model), nil
}

// ExtractJSON strips a fenced code block from model output, returning the
// inner text. Models often wrap JSON answers in ```json fences even when
// asked not to; without a fence the trimmed input is returned unchanged.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed
	}

	rest := trimmed[start+3:]
	// Drop the optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isLanguageTag(firstLine) {
			rest = rest[nl+1:]
		}
	}

	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
