package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const extractorSystemPrompt = `You extract structured data from conversational content.
You are given content, a question, and a JSON schema describing the requested fields.
Reply with a single JSON object. Include only fields whose values are actually present
in the content; omit any field you cannot resolve. Never invent values. JSON only.`

const summarizerSystemPrompt = `You produce focused summaries of conversational content.
Reply with the summary text only.`

// Extractor is the OpenAI-backed extraction oracle. Results are
// validated against the schema before they are returned: keys outside
// the schema are dropped and unresolved fields stay absent.
type Extractor struct {
	oracle *Oracle
}

var _ api.Extractor = (*Extractor)(nil)

// NewExtractor returns an extraction oracle over the oracle client.
func NewExtractor(oracle *Oracle) *Extractor {
	return &Extractor{oracle: oracle}
}

func (e *Extractor) Extract(ctx context.Context, content, question string, schema api.Schema) (*api.Fields, error) {
	schemaDoc, err := schemaJSON(schema)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Content:\n")
	b.WriteString(content)
	if question != "" {
		b.WriteString("\n\nQuestion: ")
		b.WriteString(question)
	}
	b.WriteString("\n\nSchema:\n")
	b.WriteString(schemaDoc)

	reply, err := e.oracle.complete(ctx, extractorSystemPrompt, b.String(), "")
	if err != nil {
		return nil, err
	}
	return parseFields(reply, schema), nil
}

func (e *Extractor) Summarize(ctx context.Context, content, focus, format string) (string, error) {
	var b strings.Builder
	b.WriteString("Content:\n")
	b.WriteString(content)
	if focus != "" {
		b.WriteString("\n\nFocus on: ")
		b.WriteString(focus)
	}
	if format != "" {
		b.WriteString("\nFormat: ")
		b.WriteString(format)
	}
	return e.oracle.complete(ctx, summarizerSystemPrompt, b.String(), "")
}

// schemaJSON renders the typed field description as a JSON schema
// document, preserving field order.
func schemaJSON(schema api.Schema) (string, error) {
	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, field := range schema {
		props.Set(field.Name, &jsonschema.Schema{
			Type:     string(field.Kind),
			Examples: []any{field.Example},
		})
	}
	doc := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return string(raw), nil
}

// parseFields reads the reply's JSON object, keeping only schema fields
// that resolved to non-null values, in schema order.
func parseFields(reply string, schema api.Schema) *api.Fields {
	fields := api.NewFields()

	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start == -1 || end <= start {
		return fields
	}
	parsed := gjson.Parse(reply[start : end+1])
	if !parsed.IsObject() {
		return fields
	}

	for _, field := range schema {
		value := parsed.Get(field.Name)
		if !value.Exists() || value.Type == gjson.Null {
			continue
		}
		fields.Set(field.Name, value.Value())
	}
	return fields
}
