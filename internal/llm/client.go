// Package llm holds the language-model clients used for intent classification.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a provider-neutral chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client completes a chat request against some model provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrNoJSON is returned by DecodeJSON when the model reply has no JSON object.
var ErrNoJSON = errors.New("llm: response contained no json object")

// DecodeJSON extracts the outermost {...} object from a model reply (models
// like to wrap JSON in prose or code fences) and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}
