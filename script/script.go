// Package script defines the abstract syntax tree for lotus conversation
// scripts. The tree is produced by an external parser, decoded from its
// JSON form, validated once at load time, and shared read-only across
// every session that runs it.
package script

// Statement is a single executable node in a script. The concrete kinds
// are the action statements understood by the engine's block executor,
// plus control statements and nested loops.
type Statement interface {
	stmt()
}

// Program is the root of a script: a preamble of statements executed once
// at session start, followed by the top-level conversation loops.
type Program struct {
	Preamble []Statement `json:"preamble"`
	Loops    []*Loop     `json:"loops"`
}

// Loop is one conversational loop: body statements run once per iteration
// before the exchange, Talk carries the exchange parameters, and Untils
// lists the guarded branches in declaration order. Declaration order is
// significant: when several triggers match in the same iteration the
// first declared clause wins.
type Loop struct {
	Body   []Statement `json:"body"`
	Talk   *Talk       `json:"talk"`
	Untils []*Until    `json:"untils"`
}

func (*Loop) stmt() {}

// Until is a guarded branch of a loop. Trigger is an opaque
// natural-language completion condition, interpreted only by the trigger
// evaluator.
type Until struct {
	Trigger string      `json:"trigger"`
	Block   []Statement `json:"block"`
}

// Talk holds the parameters for one turn exchange. When FirstPrompt is
// true the agent speaks before suspending for the user's reply.
type Talk struct {
	SystemPrompt  string         `json:"system_prompt" mapstructure:"system_prompt"`
	FirstPrompt   bool           `json:"first_prompt" mapstructure:"first_prompt"`
	DefaultValues map[string]any `json:"default_values" mapstructure:"default_values"`
	Info          map[string]any `json:"info" mapstructure:"info"`
}

func (*Talk) stmt() {}

// Say emits an agent utterance without waiting for a reply. When Exact is
// true the message is delivered verbatim; otherwise it is a directive the
// generation layer may rephrase.
type Say struct {
	Message string `json:"message" mapstructure:"message"`
	Exact   bool   `json:"exact" mapstructure:"exact"`
	Model   string `json:"model" mapstructure:"model"`
}

func (*Say) stmt() {}

// Extract asks the extraction oracle to pull structured fields out of
// conversational content. Example is a duck-typed schema literal: field
// name to representative value. The result is bound to Into for the rest
// of the iteration.
type Extract struct {
	From     string         `json:"from" mapstructure:"from"`
	Question string         `json:"question" mapstructure:"question"`
	Example  map[string]any `json:"example" mapstructure:"example"`
	Into     string         `json:"into" mapstructure:"into"`
}

func (*Extract) stmt() {}

// Summarize asks the oracle for a focused summary of content and binds
// the text to Into.
type Summarize struct {
	From   string `json:"from" mapstructure:"from"`
	Focus  string `json:"focus" mapstructure:"focus"`
	Format string `json:"format" mapstructure:"format"`
	Into   string `json:"into" mapstructure:"into"`
}

func (*Summarize) stmt() {}

// HTTPGet performs an external GET request and binds the wrapped response
// to Into. Responses wrap the payload under a "data" key; scripts unwrap
// it defensively.
type HTTPGet struct {
	URL     string            `json:"url" mapstructure:"url"`
	Headers map[string]string `json:"headers" mapstructure:"headers"`
	Into    string            `json:"into" mapstructure:"into"`
}

func (*HTTPGet) stmt() {}

// HTTPPost performs an external POST request with a JSON body and binds
// the wrapped response to Into.
type HTTPPost struct {
	URL     string            `json:"url" mapstructure:"url"`
	Headers map[string]string `json:"headers" mapstructure:"headers"`
	Body    map[string]any    `json:"body" mapstructure:"body"`
	Into    string            `json:"into" mapstructure:"into"`
}

func (*HTTPPost) stmt() {}

// SetState writes a value into the session state store. Value may be a
// literal or a "$" reference resolved against the current frame.
type SetState struct {
	Key   string `json:"key" mapstructure:"key"`
	Value any    `json:"value" mapstructure:"value"`
}

func (*SetState) stmt() {}

// Sleep suspends the current frame for the given number of seconds.
type Sleep struct {
	Seconds float64 `json:"seconds" mapstructure:"seconds"`
}

func (*Sleep) stmt() {}

// Transfer hands the session off to an external channel layer and ends it.
type Transfer struct {
	Destination string `json:"destination" mapstructure:"destination"`
}

func (*Transfer) stmt() {}

// Cond is the predicate of an If statement, evaluated against a "$"
// reference. Supported operators: exists, missing, eq, ne, empty.
type Cond struct {
	Ref   string `json:"ref" mapstructure:"ref"`
	Op    string `json:"op" mapstructure:"op"`
	Value any    `json:"value" mapstructure:"value"`
}

// If branches on a condition over frame bindings, the turn result, or
// session state. Scripts use it to handle extraction gaps and external
// call failures, which the runtime surfaces as data rather than errors.
type If struct {
	Cond Cond        `json:"cond"`
	Then []Statement `json:"then"`
	Else []Statement `json:"else"`
}

func (*If) stmt() {}

// Continue re-enters the nearest enclosing loop, resetting its iteration
// counter. Legal only inside an until-block.
type Continue struct{}

func (*Continue) stmt() {}

// Break pops exactly one loop frame. Legal only inside an until-block.
type Break struct{}

func (*Break) stmt() {}
