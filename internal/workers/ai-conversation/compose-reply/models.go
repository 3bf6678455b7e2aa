// internal/workers/ai-conversation/compose-reply/models.go
package composereply

import (
	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/models"
)

// Source says where a reply text came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type Input struct {
	EnquiryID     string
	Query         string
	KnowledgeBase *models.KnowledgeBase
}

type Output struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	// Cause is set when Source is fallback.
	Cause *apperrors.StandardError `json:"cause,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
