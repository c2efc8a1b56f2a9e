package ai

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// DefaultAnthropicModel is used when ANTHROPIC_MODEL is unset.
const DefaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_20250514)

// Messager is the slice of the Anthropic SDK the advisor calls.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type anthropicAdvisor struct {
	messages Messager
	model    string
}

// NewAnthropicAdvisor returns an Advisor backed by the Anthropic Messages API.
func NewAnthropicAdvisor(apiKey, model string) Advisor {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicAdvisorWith(&c.Messages, model)
}

// NewAnthropicAdvisorWith builds the advisor around any Messager.
func NewAnthropicAdvisorWith(messages Messager, model string) Advisor {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &anthropicAdvisor{messages: messages, model: model}
}

func (a *anthropicAdvisor) Advise(ctx context.Context, res assessment.Result) (CoachNote, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   1024,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(res)))},
		Temperature: anthropic.Float(0.4),
	})
	if err != nil {
		return CoachNote{}, fmt.Errorf("ai: anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return CoachNote{}, fmt.Errorf("ai: no text content in anthropic response")
	}
	return parseNote(sb.String(), SourceAnthropic)
}
