package events

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToJSON encodes an event with a "type" tag so it can cross process
// boundaries, for example over a NATS subject.
func ToJSON(event Event) ([]byte, error) {
	var kind string
	switch event.(type) {
	case Say:
		kind = "say"
	case UserMessage:
		kind = "user_message"
	case Turn:
		kind = "turn"
	case Extraction:
		kind = "extraction"
	case Transfer:
		kind = "transfer"
	case Error:
		kind = "error"
	case End:
		kind = "end"
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "type", kind)
}

// FromJSON decodes a type-tagged event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, fmt.Errorf("event is missing a type tag")
	}

	var evt Event
	var err error
	switch kind.String() {
	case "say":
		var e Say
		err = json.Unmarshal(data, &e)
		evt = e
	case "user_message":
		var e UserMessage
		err = json.Unmarshal(data, &e)
		evt = e
	case "turn":
		var e Turn
		err = json.Unmarshal(data, &e)
		evt = e
	case "extraction":
		var e Extraction
		err = json.Unmarshal(data, &e)
		evt = e
	case "transfer":
		var e Transfer
		err = json.Unmarshal(data, &e)
		evt = e
	case "error":
		var e Error
		err = json.Unmarshal(data, &e)
		evt = e
	case "end":
		var e End
		err = json.Unmarshal(data, &e)
		evt = e
	default:
		return nil, fmt.Errorf("unknown event type %q", kind.String())
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}
