// internal/workers/ai-conversation/compose-reply/config.go
package composereply

import (
	"fmt"
	"time"

	"estate-assistant/internal/common/config"
)

const defaultSystemPrompt = "You are a friendly assistant for a UK estate agency. " +
	"Answer the customer's enquiry using only the facts in the knowledge base below. " +
	"If the knowledge base does not cover the question, say that a member of the team will follow up. " +
	"Reply in plain text, no markdown, in at most three short sentences."

type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	SystemPrompt    string
	Timeout         time.Duration
	MaxRetries      int
	MaxTokens       int
	Temperature     float64
	FallbackMessage string
	FailOnError     bool
	CacheTTL        time.Duration
}

func LoadConfig(c config.LLMConfig) *Config {
	return &Config{
		BaseURL:         c.BaseURL,
		APIKey:          c.APIKey,
		Model:           c.Model,
		SystemPrompt:    defaultSystemPrompt,
		Timeout:         config.GetDuration(c.Timeout),
		MaxRetries:      c.MaxRetries,
		MaxTokens:       c.MaxTokens,
		Temperature:     c.Temperature,
		FallbackMessage: c.FallbackMessage,
		FailOnError:     c.FailOnError,
		CacheTTL:        time.Duration(c.CacheTTL) * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("llm base url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm max retries must not be negative")
	}
	return nil
}
