package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLoop() *Loop {
	return &Loop{
		Talk: &Talk{SystemPrompt: "chat"},
		Untils: []*Until{
			{Trigger: "done", Block: []Statement{&Break{}}},
		},
	}
}

func TestValidateAcceptsWellFormedPrograms(t *testing.T) {
	t.Parallel()

	prog := &Program{
		Preamble: []Statement{
			&Say{Message: "hi"},
			&SetState{Key: "k", Value: 1},
		},
		Loops: []*Loop{validLoop()},
	}
	require.NoError(t, prog.Validate())
}

func TestValidateRejectsBareTalk(t *testing.T) {
	t.Parallel()

	t.Run("in the preamble", func(t *testing.T) {
		prog := &Program{
			Preamble: []Statement{&Talk{SystemPrompt: "x"}},
			Loops:    []*Loop{validLoop()},
		}
		err := prog.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "talk outside a loop")
	})

	t.Run("in an until block", func(t *testing.T) {
		loop := validLoop()
		loop.Untils[0].Block = []Statement{&Talk{SystemPrompt: "x"}}
		prog := &Program{Loops: []*Loop{loop}}
		err := prog.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "talk outside a loop")
	})

	t.Run("in a loop body", func(t *testing.T) {
		loop := validLoop()
		loop.Body = []Statement{&Talk{SystemPrompt: "x"}}
		prog := &Program{Loops: []*Loop{loop}}
		require.Error(t, prog.Validate())
	})
}

func TestValidateRejectsIncompleteLoops(t *testing.T) {
	t.Parallel()

	t.Run("no talk", func(t *testing.T) {
		loop := validLoop()
		loop.Talk = nil
		err := (&Program{Loops: []*Loop{loop}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no talk")
	})

	t.Run("no untils", func(t *testing.T) {
		loop := validLoop()
		loop.Untils = nil
		err := (&Program{Loops: []*Loop{loop}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no until clause")
	})

	t.Run("empty trigger", func(t *testing.T) {
		loop := validLoop()
		loop.Untils[0].Trigger = ""
		err := (&Program{Loops: []*Loop{loop}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty trigger")
	})
}

func TestValidateRejectsControlOutsideUntilBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stmt Statement
		want string
	}{
		{"continue", &Continue{}, "continue outside"},
		{"break", &Break{}, "break outside"},
		{"nested loop", validLoop(), "nested loop outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" in preamble", func(t *testing.T) {
			prog := &Program{
				Preamble: []Statement{tt.stmt},
				Loops:    []*Loop{validLoop()},
			}
			err := prog.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})

		t.Run(tt.name+" in loop body", func(t *testing.T) {
			loop := validLoop()
			loop.Body = []Statement{tt.stmt}
			err := (&Program{Loops: []*Loop{loop}}).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateIfBranchesInheritContext(t *testing.T) {
	t.Parallel()

	// Control statements are fine inside an if, as long as the if itself
	// sits in an until block.
	loop := validLoop()
	loop.Untils[0].Block = []Statement{
		&If{
			Cond: Cond{Ref: "$state.x", Op: "exists"},
			Then: []Statement{&Continue{}},
			Else: []Statement{&Break{}},
		},
	}
	require.NoError(t, (&Program{Loops: []*Loop{loop}}).Validate())

	// The same if in the preamble is rejected.
	prog := &Program{
		Preamble: []Statement{&If{Then: []Statement{&Break{}}}},
		Loops:    []*Loop{validLoop()},
	}
	require.Error(t, prog.Validate())
}

func TestValidateRequiresIntoBindings(t *testing.T) {
	t.Parallel()

	loop := validLoop()
	loop.Untils[0].Block = []Statement{&Extract{Example: map[string]any{"n": ""}}}
	err := (&Program{Loops: []*Loop{loop}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract has no into")

	loop = validLoop()
	loop.Untils[0].Block = []Statement{&Summarize{Focus: "x"}}
	err = (&Program{Loops: []*Loop{loop}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize has no into")
}

func TestValidateNestedLoopsRecursively(t *testing.T) {
	t.Parallel()

	inner := validLoop()
	inner.Talk = nil
	outer := validLoop()
	outer.Untils[0].Block = []Statement{inner}

	err := (&Program{Loops: []*Loop{outer}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no talk")
}
