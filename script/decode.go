package script

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// Decode parses the JSON form of a program as produced by the external
// parser, then validates it. The returned Program is immutable and safe
// to share across sessions.
func Decode(data []byte) (*Program, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("program is not valid json")
	}
	root := gjson.ParseBytes(data)

	preamble, err := decodeBlock(root.Get("preamble"), "preamble")
	if err != nil {
		return nil, err
	}

	var loops []*Loop
	for i, raw := range root.Get("loops").Array() {
		loop, err := decodeLoop(raw, fmt.Sprintf("loops[%d]", i))
		if err != nil {
			return nil, err
		}
		loops = append(loops, loop)
	}

	prog := &Program{Preamble: preamble, Loops: loops}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func decodeLoop(raw gjson.Result, path string) (*Loop, error) {
	body, err := decodeBlock(raw.Get("body"), path+".body")
	if err != nil {
		return nil, err
	}

	var talk *Talk
	if tv := raw.Get("talk"); tv.Exists() {
		talk = &Talk{}
		if err := decodeInto(tv, talk, path+".talk"); err != nil {
			return nil, err
		}
	}

	var untils []*Until
	for i, uv := range raw.Get("untils").Array() {
		upath := fmt.Sprintf("%s.untils[%d]", path, i)
		block, err := decodeBlock(uv.Get("block"), upath+".block")
		if err != nil {
			return nil, err
		}
		untils = append(untils, &Until{
			Trigger: uv.Get("trigger").String(),
			Block:   block,
		})
	}

	return &Loop{Body: body, Talk: talk, Untils: untils}, nil
}

func decodeBlock(raw gjson.Result, path string) ([]Statement, error) {
	if !raw.Exists() {
		return nil, nil
	}
	var stmts []Statement
	for i, sv := range raw.Array() {
		stmt, err := decodeStatement(sv, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func decodeStatement(raw gjson.Result, path string) (Statement, error) {
	kind := raw.Get("type").String()
	switch kind {
	case "say":
		s := &Say{}
		return s, decodeInto(raw, s, path)
	case "talk":
		s := &Talk{}
		return s, decodeInto(raw, s, path)
	case "extract":
		s := &Extract{}
		return s, decodeInto(raw, s, path)
	case "summarize":
		s := &Summarize{}
		return s, decodeInto(raw, s, path)
	case "http_get":
		s := &HTTPGet{}
		return s, decodeInto(raw, s, path)
	case "http_post":
		s := &HTTPPost{}
		return s, decodeInto(raw, s, path)
	case "set_state":
		s := &SetState{}
		return s, decodeInto(raw, s, path)
	case "sleep":
		s := &Sleep{}
		return s, decodeInto(raw, s, path)
	case "transfer":
		s := &Transfer{}
		return s, decodeInto(raw, s, path)
	case "continue":
		return &Continue{}, nil
	case "break":
		return &Break{}, nil
	case "loop":
		return decodeLoop(raw, path)
	case "if":
		s := &If{}
		if cv := raw.Get("cond"); cv.Exists() {
			if err := decodeInto(cv, &s.Cond, path+".cond"); err != nil {
				return nil, err
			}
		}
		then, err := decodeBlock(raw.Get("then"), path+".then")
		if err != nil {
			return nil, err
		}
		els, err := decodeBlock(raw.Get("else"), path+".else")
		if err != nil {
			return nil, err
		}
		s.Then, s.Else = then, els
		return s, nil
	case "":
		return nil, &ValidationError{Path: path, Reason: "statement is missing a type"}
	default:
		return nil, &ValidationError{Path: path, Reason: fmt.Sprintf("unknown statement type %q", kind)}
	}
}

// decodeInto maps the scalar fields of a raw statement object onto the
// target struct. Nested blocks are handled by the callers; mapstructure
// ignores the keys they consume.
func decodeInto(raw gjson.Result, target any, path string) error {
	m, ok := raw.Value().(map[string]any)
	if !ok {
		return &ValidationError{Path: path, Reason: "statement must be an object"}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m); err != nil {
		return &ValidationError{Path: path, Reason: err.Error()}
	}
	return nil
}
