package engine

import (
	"context"
	"reflect"
	"strings"
	"text/template"

	"github.com/BrainbaseHQ/lotus-prompt/script"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Reference syntax: values and conditions may refer to runtime data with
// "$" paths.
//
//	$turn              the content of the most recent exchange
//	$turn.<field>      a field of the turn result (user_message, ...)
//	$state.<key>[...]  a session state entry, optionally a path inside it
//	$vars.<name>[...]  a frame-local binding, optionally a path inside it
//
// A leading "$$" escapes a literal dollar sign. Deep paths use gjson
// syntax over the JSON form of the referenced value.

// resolveValue resolves v when it is a reference string, returning it
// unchanged otherwise.
func (e *Engine) resolveValue(ctx context.Context, f *Frame, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if strings.HasPrefix(s, "$$") {
		return s[1:]
	}
	if !strings.HasPrefix(s, "$") {
		return s
	}
	resolved, _ := e.resolveRef(ctx, f, s)
	return resolved
}

// resolveRef resolves a "$" reference against the frame and session
// state. The second return reports presence, so scripts can distinguish
// an absent field from a null one.
func (e *Engine) resolveRef(ctx context.Context, f *Frame, ref string) (any, bool) {
	path := strings.TrimPrefix(ref, "$")
	head, rest, _ := strings.Cut(path, ".")

	switch head {
	case "turn":
		turn := f.lastTurn()
		if turn == nil {
			return nil, false
		}
		if rest == "" {
			return turn.Content, true
		}
		return jsonPath(turn, rest)

	case "state":
		key, sub, _ := strings.Cut(rest, ".")
		if key == "" {
			return nil, false
		}
		value, ok, err := e.store.Get(ctx, key)
		if err != nil || !ok {
			return nil, false
		}
		if sub == "" {
			return value, true
		}
		return jsonPath(value, sub)

	case "vars":
		name, sub, _ := strings.Cut(rest, ".")
		if name == "" {
			return nil, false
		}
		value, ok := lookupBinding(f, name)
		if !ok {
			return nil, false
		}
		if sub == "" {
			return value, true
		}
		return jsonPath(value, sub)

	default:
		return nil, false
	}
}

// lookupBinding finds a frame-local binding, walking up the stack so an
// until-block can see bindings made before a nested loop was entered.
func lookupBinding(f *Frame, name string) (any, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		if v, ok := frame.bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// jsonPath digs into an arbitrary value with a gjson path over its JSON
// form.
func jsonPath(value any, path string) (any, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// render interpolates a message or prompt template against the frame's
// view of the world. Plain strings pass through untouched.
func (e *Engine) render(ctx context.Context, f *Frame, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	scope := map[string]any{
		"state": snapshot,
		"vars":  f.bindings,
	}
	if turn := f.lastTurn(); turn != nil {
		scope["turn"] = turn
	}

	tmpl, err := template.New("text").Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, scope); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// evalCond evaluates an If predicate. Numbers are normalized through
// float64 so JSON-decoded literals compare naturally.
func (e *Engine) evalCond(ctx context.Context, f *Frame, c script.Cond) bool {
	value, present := e.resolveRef(ctx, f, c.Ref)

	switch c.Op {
	case "exists":
		return present
	case "missing":
		return !present
	case "empty":
		if !present || value == nil {
			return true
		}
		switch v := value.(type) {
		case string:
			return v == ""
		case []any:
			return len(v) == 0
		case map[string]any:
			return len(v) == 0
		}
		return false
	case "eq":
		return present && looseEqual(value, c.Value)
	case "ne":
		return !present || !looseEqual(value, c.Value)
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
