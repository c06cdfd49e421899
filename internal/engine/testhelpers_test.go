package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/BrainbaseHQ/lotus-prompt/broker"
	"github.com/BrainbaseHQ/lotus-prompt/events"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/uuidx"
	"github.com/BrainbaseHQ/lotus-prompt/script"
	"github.com/BrainbaseHQ/lotus-prompt/state"
)

// scriptedExchanger produces one synthetic turn per call. With block set
// it parks on ctx instead, so tests can abort mid-exchange.
type scriptedExchanger struct {
	mu    sync.Mutex
	calls int
	errs  map[int]error // 1-based call number to forced failure
	block bool
}

func (s *scriptedExchanger) Exchange(ctx context.Context, params api.ExchangeParams) (api.TurnResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return api.TurnResult{}, ctx.Err()
	}
	if err := s.errs[call]; err != nil {
		return api.TurnResult{}, err
	}
	return api.TurnResult{
		Content:      fmt.Sprintf("Agent: hello %d\nUser: reply %d", call, call),
		UserMessage:  fmt.Sprintf("reply %d", call),
		AgentMessage: fmt.Sprintf("hello %d", call),
		FirstPrompt:  params.FirstPrompt,
	}, nil
}

func (s *scriptedExchanger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptedEvaluator replays a fixed sequence of match sets, one per
// call. Past the end of the sequence every iteration is unmatched.
type scriptedEvaluator struct {
	mu      sync.Mutex
	calls   int
	matches [][]int
	errs    map[int]error
}

func (s *scriptedEvaluator) Evaluate(ctx context.Context, triggers []api.Trigger, turn api.TurnResult, st map[string]any) ([]int, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if err := s.errs[call]; err != nil {
		return nil, err
	}
	if call > len(s.matches) {
		return nil, nil
	}
	return s.matches[call-1], nil
}

// fakeExtractor resolves the intersection of its canned fields with the
// requested schema, in schema order.
type fakeExtractor struct {
	fields  map[string]any
	summary string
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, content, question string, schema api.Schema) (*api.Fields, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := api.NewFields()
	for _, field := range schema {
		if value, ok := f.fields[field.Name]; ok {
			result.Set(field.Name, value)
		}
	}
	return result, nil
}

func (f *fakeExtractor) Summarize(ctx context.Context, content, focus, format string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

// captureTopic records every published event in order.
type captureTopic struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureTopic) Publish(ctx context.Context, event events.Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *captureTopic) Subscribe(ctx context.Context, hook events.Hook) (broker.Subscription, error) {
	return subscription{}, nil
}

func (c *captureTopic) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

func (c *captureTopic) says() []events.Say {
	var says []events.Say
	for _, evt := range c.all() {
		if say, ok := evt.(events.Say); ok {
			says = append(says, say)
		}
	}
	return says
}

func (c *captureTopic) userMessages() []events.UserMessage {
	var msgs []events.UserMessage
	for _, evt := range c.all() {
		if msg, ok := evt.(events.UserMessage); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (c *captureTopic) endReason() (events.EndReason, bool) {
	for _, evt := range c.all() {
		if end, ok := evt.(events.End); ok {
			return end.Reason, true
		}
	}
	return "", false
}

type subscription struct{}

func (subscription) ID() string   { return "" }
func (subscription) Unsubscribe() {}

// fakeCaller is a canned httpx.Caller that records the last request.
type fakeCaller struct {
	mu       sync.Mutex
	result   map[string]any
	err      error
	lastURL  string
	lastBody map[string]any
}

func (f *fakeCaller) Get(ctx context.Context, url string, headers map[string]string) (map[string]any, error) {
	f.mu.Lock()
	f.lastURL = url
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeCaller) Post(ctx context.Context, url string, headers map[string]string, body map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.lastURL = url
	f.lastBody = body
	f.mu.Unlock()
	return f.result, f.err
}

type testRig struct {
	engine    *Engine
	exchanger *scriptedExchanger
	evaluator *scriptedEvaluator
	extractor *fakeExtractor
	http      *fakeCaller
	store     *state.Memory
	topic     *captureTopic
	sessionID uuid.UUID
}

type rigOption func(*testRig, *Config)

func withConfig(cfg Config) rigOption {
	return func(_ *testRig, out *Config) { *out = cfg }
}

func withEvaluations(matches ...[]int) rigOption {
	return func(r *testRig, _ *Config) { r.evaluator.matches = matches }
}

func withExtractor(extractor *fakeExtractor) rigOption {
	return func(r *testRig, _ *Config) { r.extractor = extractor }
}

func withExchanger(exchanger *scriptedExchanger) rigOption {
	return func(r *testRig, _ *Config) { r.exchanger = exchanger }
}

func withHTTP(caller *fakeCaller) rigOption {
	return func(r *testRig, _ *Config) { r.http = caller }
}

func newTestRig(t *testing.T, program *script.Program, options ...rigOption) *testRig {
	t.Helper()

	rig := &testRig{
		exchanger: &scriptedExchanger{},
		evaluator: &scriptedEvaluator{},
		extractor: &fakeExtractor{},
		store:     state.NewMemory(),
		topic:     &captureTopic{},
		sessionID: uuidx.New(),
	}
	cfg := Config{}
	for _, opt := range options {
		opt(rig, &cfg)
	}

	deps := Deps{
		Exchanger: rig.exchanger,
		Evaluator: rig.evaluator,
		Extractor: rig.extractor,
		Store:     rig.store,
		Topic:     rig.topic,
	}
	if rig.http != nil {
		deps.HTTP = rig.http
	}
	eng, err := New(rig.sessionID, program, deps, cfg)
	require.NoError(t, err)
	rig.engine = eng
	return rig
}

func (r *testRig) mustGet(t *testing.T, key string) any {
	t.Helper()
	value, ok, err := r.store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "state key %q not set", key)
	return value
}

func (r *testRig) has(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := r.store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func program(loops ...*script.Loop) *script.Program {
	return &script.Program{Loops: loops}
}

func loop(talk *script.Talk, untils ...*script.Until) *script.Loop {
	return &script.Loop{Talk: talk, Untils: untils}
}

func until(trigger string, block ...script.Statement) *script.Until {
	return &script.Until{Trigger: trigger, Block: block}
}

func talk(prompt string) *script.Talk {
	return &script.Talk{SystemPrompt: prompt}
}

func set(key string, value any) *script.SetState {
	return &script.SetState{Key: key, Value: value}
}
