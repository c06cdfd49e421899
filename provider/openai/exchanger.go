package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const openerInstruction = `Open the conversation with your first message to the user. Reply with that message only.`

const rephraseSystemPrompt = `Rewrite the following directive as a natural message from the agent to the user,
preserving its meaning exactly. Reply with the message only.`

// Exchanger drives turn exchanges over a Transport: the model side comes
// from chat completions, the user side from the transport's channel. It
// also implements Say for one-directional output.
type Exchanger struct {
	oracle    *Oracle
	transport api.Transport
}

var (
	_ api.Exchanger = (*Exchanger)(nil)
	_ api.Sayer     = (*Exchanger)(nil)
)

// NewExchanger binds the oracle to a channel transport.
func NewExchanger(oracle *Oracle, transport api.Transport) *Exchanger {
	return &Exchanger{oracle: oracle, transport: transport}
}

// Exchange drives one combined round. With FirstPrompt set, the agent
// speaks before suspending for the user's reply; otherwise the user
// speaks first and the agent answers.
func (e *Exchanger) Exchange(ctx context.Context, params api.ExchangeParams) (api.TurnResult, error) {
	system, err := systemPrompt(params)
	if err != nil {
		return api.TurnResult{}, err
	}

	var agentMsg, userMsg string
	if params.FirstPrompt {
		agentMsg, err = e.oracle.complete(ctx, system, openerInstruction, "")
		if err != nil {
			return api.TurnResult{}, fmt.Errorf("agent opener: %w", err)
		}
		if err := e.transport.Deliver(ctx, agentMsg); err != nil {
			return api.TurnResult{}, fmt.Errorf("deliver opener: %w", err)
		}
		userMsg, err = e.transport.Listen(ctx)
		if err != nil {
			return api.TurnResult{}, err
		}
	} else {
		userMsg, err = e.transport.Listen(ctx)
		if err != nil {
			return api.TurnResult{}, err
		}
		agentMsg, err = e.oracle.complete(ctx, system, userMsg, "")
		if err != nil {
			return api.TurnResult{}, fmt.Errorf("agent reply: %w", err)
		}
		if err := e.transport.Deliver(ctx, agentMsg); err != nil {
			return api.TurnResult{}, fmt.Errorf("deliver reply: %w", err)
		}
	}

	content := combined(params.FirstPrompt, agentMsg, userMsg)
	return api.TurnResult{
		Content:      content,
		UserMessage:  userMsg,
		AgentMessage: agentMsg,
		FirstPrompt:  params.FirstPrompt,
		Model:        e.oracle.model,
	}, nil
}

// Say delivers a one-directional utterance. Non-exact messages are
// directives the model may rephrase while preserving meaning.
func (e *Exchanger) Say(ctx context.Context, _ uuid.UUID, message string, exact bool, model string) error {
	if !exact {
		rephrased, err := e.oracle.complete(ctx, rephraseSystemPrompt, message, model)
		if err != nil {
			return fmt.Errorf("rephrase: %w", err)
		}
		message = rephrased
	}
	return e.transport.Deliver(ctx, message)
}

func systemPrompt(params api.ExchangeParams) (string, error) {
	var b strings.Builder
	b.WriteString(params.SystemPrompt)
	if len(params.DefaultValues) > 0 {
		raw, err := json.Marshal(params.DefaultValues)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\nDefaults:\n")
		b.Write(raw)
	}
	if len(params.Info) > 0 {
		raw, err := json.Marshal(params.Info)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\nContext:\n")
		b.Write(raw)
	}
	return b.String(), nil
}

func combined(firstPrompt bool, agentMsg, userMsg string) string {
	if firstPrompt {
		return "Agent: " + agentMsg + "\nUser: " + userMsg
	}
	return "User: " + userMsg + "\nAgent: " + agentMsg
}
