package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrainbaseHQ/lotus-prompt/events"
	"github.com/BrainbaseHQ/lotus-prompt/script"
)

func TestRunExchangesOncePerIteration(t *testing.T) {
	t.Parallel()

	// Three unmatched iterations, then a match that breaks.
	prog := program(loop(talk("collect the order"),
		until("the user confirmed", &script.Break{}),
	))
	rig := newTestRig(t, prog, withEvaluations(nil, nil, nil, []int{0}))

	err := rig.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rig.exchanger.callCount())

	reason, ok := rig.topic.endReason()
	require.True(t, ok)
	assert.Equal(t, events.EndCompleted, reason)
}

func TestFirstDeclaredTriggerWins(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("triage"),
		until("wants billing", set("route", "billing"), &script.Break{}),
		until("wants support", set("route", "support"), &script.Break{}),
		until("wants sales", set("route", "sales"), &script.Break{}),
	))
	// The oracle reports candidates out of order; declaration order decides.
	rig := newTestRig(t, prog, withEvaluations([]int{2, 1}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, "support", rig.mustGet(t, "route"))
}

func TestOutOfRangeMatchesAreIgnored(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"),
		until("done", &script.Break{}),
	))
	rig := newTestRig(t, prog, withEvaluations([]int{-1, 7}, []int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 2, rig.exchanger.callCount())
}

func TestLoopGuardTripsWithoutAnotherExchange(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"),
		until("never happens"),
	))
	rig := newTestRig(t, prog, withConfig(Config{
		MaxIterations:   3,
		FallbackMessage: "let me get a human",
	}))

	err := rig.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrLoopCeiling)

	// The ceiling bounds exchanges: three happened, a fourth never did.
	assert.Equal(t, 3, rig.exchanger.callCount())

	says := rig.topic.says()
	require.Len(t, says, 1)
	assert.Equal(t, "let me get a human", says[0].Message)
	assert.True(t, says[0].Exact)

	reason, ok := rig.topic.endReason()
	require.True(t, ok)
	assert.Equal(t, events.EndLoopGuard, reason)
}

func TestGuardFallbackTransfer(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("never")))
	rig := newTestRig(t, prog, withConfig(Config{
		MaxIterations:    2,
		FallbackTransfer: "tier2-queue",
	}))

	err := rig.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrLoopCeiling)

	var transfers []events.Transfer
	for _, evt := range rig.topic.all() {
		if tr, ok := evt.(events.Transfer); ok {
			transfers = append(transfers, tr)
		}
	}
	require.Len(t, transfers, 1)
	assert.Equal(t, "tier2-queue", transfers[0].Destination)
}

func TestContinueResetsTheIterationStreak(t *testing.T) {
	t.Parallel()

	// Every iteration matches and continues. With a ceiling of 3 the
	// guard would trip on a streak of unmatched iterations, but matched
	// ones reset it.
	prog := program(loop(talk("chat"),
		until("made progress", &script.Continue{}),
		until("done", &script.Break{}),
	))
	rig := newTestRig(t, prog,
		withConfig(Config{MaxIterations: 3}),
		withEvaluations([]int{0}, []int{0}, []int{0}, []int{0}, []int{0}, []int{1}),
	)

	err := rig.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rig.exchanger.callCount())
}

func TestUnmatchedStreakSurvivesAcrossMatches(t *testing.T) {
	t.Parallel()

	// Two unmatched, one matched continue, two unmatched again: the
	// streak never reaches 3, so no guard trip.
	prog := program(loop(talk("chat"),
		until("progress", &script.Continue{}),
		until("done", &script.Break{}),
	))
	rig := newTestRig(t, prog,
		withConfig(Config{MaxIterations: 3}),
		withEvaluations(nil, nil, []int{0}, nil, nil, []int{1}),
	)

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 6, rig.exchanger.callCount())
}

func TestNestedLoopBreakReturnsToOuterBlock(t *testing.T) {
	t.Parallel()

	inner := loop(talk("collect the detail"),
		until("detail captured", set("detail", "$turn.user_message"), &script.Break{}),
	)
	outer := loop(talk("outer"),
		until("needs detail",
			set("entered", true),
			inner,
			set("after_nested", true),
		),
		until("all done", &script.Break{}),
	)
	prog := program(outer)

	// Call 1 is the outer exchange, call 2 the nested loop's, call 3 the
	// outer loop again after the nested one broke.
	rig := newTestRig(t, prog, withEvaluations([]int{0}, []int{0}, []int{1}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 3, rig.exchanger.callCount())
	assert.Equal(t, true, rig.mustGet(t, "entered"))
	assert.Equal(t, true, rig.mustGet(t, "after_nested"))
	assert.Equal(t, "reply 2", rig.mustGet(t, "detail"))
}

func TestContinueRestartsTheNearestLoop(t *testing.T) {
	t.Parallel()

	inner := loop(
		&script.Talk{SystemPrompt: "inner"},
		until("retry", &script.Continue{}),
		until("captured", &script.Break{}),
	)
	inner.Body = []script.Statement{&script.Say{Message: "inner preamble", Exact: true}}

	outer := loop(talk("outer"),
		until("dig in", inner),
		until("done", &script.Break{}),
	)
	prog := program(outer)

	// outer match -> inner exchange, continue -> inner exchange again,
	// break -> outer exchange, done.
	rig := newTestRig(t, prog, withEvaluations([]int{0}, []int{0}, []int{1}, []int{1}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 4, rig.exchanger.callCount())

	var innerPreambles int
	for _, say := range rig.topic.says() {
		if say.Message == "inner preamble" {
			innerPreambles++
		}
	}
	// Continue re-entered the inner loop, so its preamble ran twice.
	assert.Equal(t, 2, innerPreambles)
}

func TestRootBreakEndsTheLoopAndProceeds(t *testing.T) {
	t.Parallel()

	first := loop(talk("first"),
		until("first done", set("first", true), &script.Break{}),
	)
	second := loop(talk("second"),
		until("second done", set("second", true), &script.Break{}),
	)
	prog := program(first, second)
	rig := newTestRig(t, prog, withEvaluations([]int{0}, []int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, true, rig.mustGet(t, "first"))
	assert.Equal(t, true, rig.mustGet(t, "second"))

	reason, _ := rig.topic.endReason()
	assert.Equal(t, events.EndCompleted, reason)
}

func TestTransferEndsTheSession(t *testing.T) {
	t.Parallel()

	prog := program(
		loop(talk("chat"),
			until("wants a human", &script.Transfer{Destination: "human-agents"}),
		),
		loop(talk("never reached"), until("x", &script.Break{})),
	)
	rig := newTestRig(t, prog, withEvaluations([]int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 1, rig.exchanger.callCount())

	reason, _ := rig.topic.endReason()
	assert.Equal(t, events.EndTransfer, reason)
}

func TestPreambleRunsOnceBeforeTheFirstExchange(t *testing.T) {
	t.Parallel()

	prog := &script.Program{
		Preamble: []script.Statement{
			&script.Say{Message: "welcome", Exact: true},
			set("greeted", true),
		},
		Loops: []*script.Loop{
			loop(talk("chat"), until("done", &script.Break{})),
		},
	}
	rig := newTestRig(t, prog, withEvaluations(nil, []int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))

	all := rig.topic.all()
	require.NotEmpty(t, all)
	say, ok := all[0].(events.Say)
	require.True(t, ok, "first event should be the preamble say, got %T", all[0])
	assert.Equal(t, "welcome", say.Message)
	assert.Equal(t, true, rig.mustGet(t, "greeted"))

	var says int
	for range rig.topic.says() {
		says++
	}
	assert.Equal(t, 1, says, "preamble must not repeat per iteration")
}

func TestStatePersistsAcrossIterationsBindingsDoNot(t *testing.T) {
	t.Parallel()

	l := loop(talk("chat"),
		until("progress",
			set("seen", "$vars.scratch"),
			&script.Continue{},
		),
		until("done",
			set("final_scratch", "$vars.scratch"),
			set("final_seen", "$state.seen"),
			&script.Break{},
		),
	)
	l.Body = []script.Statement{
		&script.Extract{
			Question: "scratch",
			Example:  map[string]any{"value": "x"},
			Into:     "scratch",
		},
	}
	prog := program(l)
	rig := newTestRig(t, prog,
		withEvaluations([]int{0}, []int{1}),
		withExtractor(&fakeExtractor{fields: map[string]any{"value": "extracted"}}),
	)

	require.NoError(t, rig.engine.Run(context.Background()))

	// The binding was re-created by the body each iteration, the state
	// write from iteration one stayed visible in iteration two.
	assert.Equal(t, map[string]any{"value": "extracted"}, rig.mustGet(t, "final_scratch"))
	assert.Equal(t, map[string]any{"value": "extracted"}, rig.mustGet(t, "final_seen"))
}

func TestExchangeFailureCountsAsUnmatched(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("done", &script.Break{})))
	rig := newTestRig(t, prog, withEvaluations([]int{0}))
	rig.exchanger.errs = map[int]error{1: assert.AnError}

	// Call 1 fails and degrades to an unmatched iteration. Call 2
	// succeeds; the evaluator's first response matches it.
	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 2, rig.exchanger.callCount())
}

func TestEvaluatorFailureCountsAsUnmatched(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("done", &script.Break{})))
	rig := newTestRig(t, prog, withEvaluations([]int{0}, []int{0}))
	rig.evaluator.errs = map[int]error{1: assert.AnError}

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 2, rig.exchanger.callCount())
}

func TestAbortDuringExchange(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("done", &script.Break{})))
	rig := newTestRig(t, prog, withExchanger(&scriptedExchanger{block: true}))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()

	err := rig.engine.Run(ctx)
	require.ErrorIs(t, err, ErrSessionAborted)

	reason, ok := rig.topic.endReason()
	require.True(t, ok, "end event must be published even after abort")
	assert.Equal(t, events.EndAborted, reason)
}

func TestDepthCeiling(t *testing.T) {
	t.Parallel()

	inner := loop(talk("inner"), until("x", &script.Break{}))
	outer := loop(talk("outer"), until("deeper", inner))
	prog := program(outer)
	rig := newTestRig(t, prog,
		withConfig(Config{MaxDepth: 1}),
		withEvaluations([]int{0}),
	)

	err := rig.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrDepthCeiling)

	reason, _ := rig.topic.endReason()
	assert.Equal(t, events.EndError, reason)
}

func TestTurnEventCarriesIteration(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("done", &script.Break{})))
	rig := newTestRig(t, prog, withEvaluations(nil, []int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))

	var turns []events.Turn
	for _, evt := range rig.topic.all() {
		if turn, ok := evt.(events.Turn); ok {
			turns = append(turns, turn)
		}
	}
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].Iteration)
	assert.Equal(t, 2, turns[1].Iteration)
	assert.Equal(t, rig.sessionID, turns[0].SessionID)
}

func TestUserMessageEventPublishedPerExchange(t *testing.T) {
	t.Parallel()

	prog := program(loop(talk("chat"), until("done", &script.Break{})))
	rig := newTestRig(t, prog, withEvaluations(nil, []int{0}))

	require.NoError(t, rig.engine.Run(context.Background()))

	msgs := rig.topic.userMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "reply 1", msgs[0].Content)
	assert.Equal(t, "reply 2", msgs[1].Content)
	assert.Equal(t, rig.sessionID, msgs[0].SessionID)
}

func TestTripleNestedBreaksUnwindToTheOuterPreamble(t *testing.T) {
	t.Parallel()

	inner := loop(talk("inner"),
		until("inner captured", set("inner_done", true), &script.Break{}),
	)
	middle := loop(talk("middle"),
		until("middle captured", inner, set("middle_done", true), &script.Break{}),
	)
	outer := loop(talk("outer"),
		until("dig in", middle, &script.Continue{}),
		until("wrapped up", &script.Break{}),
	)
	outer.Body = []script.Statement{&script.Say{Message: "outer preamble", Exact: true}}
	prog := program(outer)

	// Call 1 matches the outer trigger and descends two levels; calls 2
	// and 3 break out of the inner and middle loops; the continue then
	// restarts the outer loop from its preamble, and call 4 wraps up.
	rig := newTestRig(t, prog, withEvaluations([]int{0}, []int{0}, []int{0}, []int{1}))

	require.NoError(t, rig.engine.Run(context.Background()))
	assert.Equal(t, 4, rig.exchanger.callCount())
	assert.Equal(t, true, rig.mustGet(t, "inner_done"))
	assert.Equal(t, true, rig.mustGet(t, "middle_done"))

	preambles := 0
	for _, say := range rig.topic.says() {
		if say.Message == "outer preamble" {
			preambles++
		}
	}
	assert.Equal(t, 2, preambles)

	reason, ok := rig.topic.endReason()
	require.True(t, ok)
	assert.Equal(t, events.EndCompleted, reason)
}
