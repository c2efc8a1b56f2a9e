package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

const (
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// ChatCompleter is the slice of the go-openai client the advisor calls.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// deepseekAdvisor talks to DeepSeek through its OpenAI-compatible chat
// completions endpoint.
type deepseekAdvisor struct {
	client ChatCompleter
	model  string
}

// NewDeepSeekAdvisor returns an Advisor that calls DeepSeek. baseURL may be
// empty.
func NewDeepSeekAdvisor(apiKey, model, baseURL string) Advisor {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultDeepSeekBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewDeepSeekAdvisorWith(openai.NewClientWithConfig(cfg), model)
}

func NewDeepSeekAdvisorWith(client ChatCompleter, model string) Advisor {
	if model == "" {
		model = DefaultDeepSeekModel
	}
	return &deepseekAdvisor{client: client, model: model}
}

func (d *deepseekAdvisor) Advise(ctx context.Context, res assessment.Result) (CoachNote, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(res)},
		},
		MaxTokens: 1024,
		// DeepSeek honours json_object the same way OpenAI does.
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return CoachNote{}, fmt.Errorf("ai: deepseek chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CoachNote{}, fmt.Errorf("ai: deepseek returned no choices")
	}
	return parseNote(resp.Choices[0].Message.Content, SourceDeepSeek)
}
