package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const evaluatorSystemPrompt = `You judge whether completion conditions of a conversation loop are now satisfied.
You are given numbered conditions, the latest conversational round, and the session state.
Reply with a JSON array holding the numbers of every satisfied condition, for example [0,2].
Reply with [] when none are satisfied. Reply with JSON only.`

// Evaluator is the OpenAI-backed trigger evaluator. It reports every
// candidate the model judges satisfied; tie-breaking stays with the
// engine. Unparseable model output counts as no match.
type Evaluator struct {
	oracle *Oracle
}

var _ api.TriggerEvaluator = (*Evaluator)(nil)

// NewEvaluator returns a trigger evaluator over the oracle.
func NewEvaluator(oracle *Oracle) *Evaluator {
	return &Evaluator{oracle: oracle}
}

func (e *Evaluator) Evaluate(ctx context.Context, triggers []api.Trigger, turn api.TurnResult, state map[string]any) ([]int, error) {
	if len(triggers) == 0 {
		return nil, nil
	}

	prompt, err := evaluationPrompt(triggers, turn, state)
	if err != nil {
		return nil, err
	}
	reply, err := e.oracle.complete(ctx, evaluatorSystemPrompt, prompt, "")
	if err != nil {
		return nil, err
	}
	return parseMatches(reply, len(triggers)), nil
}

func evaluationPrompt(triggers []api.Trigger, turn api.TurnResult, state map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Conditions:\n")
	for _, trigger := range triggers {
		fmt.Fprintf(&b, "%d. %s\n", trigger.Index, trigger.Description)
	}
	b.WriteString("\nLatest round:\n")
	b.WriteString(turn.Content)
	if len(state) > 0 {
		snapshot, err := json.Marshal(state)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\nSession state:\n")
		b.Write(snapshot)
	}
	return b.String(), nil
}

// parseMatches pulls the first JSON array out of the reply. Indices out
// of range are dropped; anything unparseable means no match.
func parseMatches(reply string, count int) []int {
	start := strings.IndexByte(reply, '[')
	end := strings.LastIndexByte(reply, ']')
	if start == -1 || end <= start {
		return nil
	}
	parsed := gjson.Parse(reply[start : end+1])
	if !parsed.IsArray() {
		return nil
	}

	var matches []int
	for _, item := range parsed.Array() {
		idx := int(item.Int())
		if item.Type != gjson.Number || idx < 0 || idx >= count {
			continue
		}
		matches = append(matches, idx)
	}
	return matches
}
