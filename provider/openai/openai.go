// Package openai implements the runtime's oracle contracts on top of the
// OpenAI chat completions API: turn exchanges, trigger evaluation,
// extraction, and summarization. Prompts are kept deterministic-leaning
// with a low temperature; outputs that need structure are requested as
// JSON and parsed defensively.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Oracle wraps one OpenAI client and model choice. It is the shared base
// of the evaluator, extractor, and exchanger in this package.
type Oracle struct {
	client *openai.Client
	model  string
}

// New creates an Oracle. Model may be empty, defaulting to GPT-4o mini.
func New(model string, options ...option.RequestOption) *Oracle {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &Oracle{
		client: openai.NewClient(options...),
		model:  model,
	}
}

// complete runs one non-streaming completion and returns the assistant
// message content.
func (o *Oracle) complete(ctx context.Context, system, user, model string) (string, error) {
	if model == "" {
		model = o.model
	}
	chat, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		}),
		Model:       openai.F(model),
		N:           openai.Int(1),
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return "", err
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return chat.Choices[0].Message.Content, nil
}
