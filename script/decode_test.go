package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderScript = `{
  "preamble": [
    {"type": "say", "message": "Welcome to Lotus Pizza!", "exact": true},
    {"type": "set_state", "key": "store_id", "value": 12}
  ],
  "loops": [
    {
      "talk": {
        "system_prompt": "Take the customer's order",
        "first_prompt": true,
        "default_values": {"tone": "friendly"},
        "info": {"menu": ["margherita", "pepperoni"]}
      },
      "body": [
        {"type": "say", "message": "What can I get you?"}
      ],
      "untils": [
        {
          "trigger": "the customer finished ordering",
          "block": [
            {
              "type": "extract",
              "question": "what did they order",
              "example": {"item": "margherita", "quantity": 1},
              "into": "order"
            },
            {
              "type": "if",
              "cond": {"ref": "$vars.order.item", "op": "missing"},
              "then": [{"type": "continue"}],
              "else": [
                {"type": "http_post", "url": "https://api.example.com/orders",
                 "body": {"item": "$vars.order.item"}, "into": "created"},
                {"type": "break"}
              ]
            }
          ]
        },
        {
          "trigger": "the customer wants a human",
          "block": [{"type": "transfer", "destination": "store-phone"}]
        }
      ]
    }
  ]
}`

func TestDecode(t *testing.T) {
	t.Parallel()

	prog, err := Decode([]byte(orderScript))
	require.NoError(t, err)

	require.Len(t, prog.Preamble, 2)
	say, ok := prog.Preamble[0].(*Say)
	require.True(t, ok)
	assert.Equal(t, "Welcome to Lotus Pizza!", say.Message)
	assert.True(t, say.Exact)

	st, ok := prog.Preamble[1].(*SetState)
	require.True(t, ok)
	assert.Equal(t, "store_id", st.Key)
	assert.Equal(t, float64(12), st.Value)

	require.Len(t, prog.Loops, 1)
	loop := prog.Loops[0]
	require.NotNil(t, loop.Talk)
	assert.Equal(t, "Take the customer's order", loop.Talk.SystemPrompt)
	assert.True(t, loop.Talk.FirstPrompt)
	assert.Equal(t, map[string]any{"tone": "friendly"}, loop.Talk.DefaultValues)

	require.Len(t, loop.Untils, 2)
	assert.Equal(t, "the customer finished ordering", loop.Untils[0].Trigger)

	block := loop.Untils[0].Block
	require.Len(t, block, 2)
	ex, ok := block[0].(*Extract)
	require.True(t, ok)
	assert.Equal(t, "order", ex.Into)
	assert.Equal(t, map[string]any{"item": "margherita", "quantity": float64(1)}, ex.Example)

	cond, ok := block[1].(*If)
	require.True(t, ok)
	assert.Equal(t, "missing", cond.Cond.Op)
	require.Len(t, cond.Then, 1)
	assert.IsType(t, &Continue{}, cond.Then[0])
	require.Len(t, cond.Else, 2)
	post, ok := cond.Else[0].(*HTTPPost)
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com/orders", post.URL)
	assert.IsType(t, &Break{}, cond.Else[1])

	tr, ok := loop.Untils[1].Block[0].(*Transfer)
	require.True(t, ok)
	assert.Equal(t, "store-phone", tr.Destination)
}

func TestDecodeNestedLoop(t *testing.T) {
	t.Parallel()

	prog, err := Decode([]byte(`{
	  "loops": [{
	    "talk": {"system_prompt": "outer"},
	    "untils": [{
	      "trigger": "needs detail",
	      "block": [{
	        "type": "loop",
	        "talk": {"system_prompt": "inner"},
	        "untils": [{"trigger": "detail captured", "block": [{"type": "break"}]}]
	      }]
	    }]
	  }]
	}`))
	require.NoError(t, err)

	inner, ok := prog.Loops[0].Untils[0].Block[0].(*Loop)
	require.True(t, ok)
	assert.Equal(t, "inner", inner.Talk.SystemPrompt)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want string
	}{
		{"invalid json", `{"loops": [`, "not valid json"},
		{"missing type", `{"loops": [{"talk": {"system_prompt": "x"}, "untils": [{"trigger": "t", "block": [{"message": "hi"}]}]}]}`, "missing a type"},
		{"unknown type", `{"loops": [{"talk": {"system_prompt": "x"}, "untils": [{"trigger": "t", "block": [{"type": "shout"}]}]}]}`, "unknown statement type"},
		{"no loops", `{"preamble": [{"type": "say", "message": "hi"}]}`, "no conversation loop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
