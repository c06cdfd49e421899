// Package lotus is a runtime for declarative conversational-agent
// scripts. A script is a tree of loops: each iteration runs preamble
// statements, drives one model/user exchange, and asks a semantic
// trigger evaluator which of the loop's natural-language completion
// conditions now holds. A matched clause's block can extract structured
// data from the conversation, call external services, mutate session
// state, nest further loops, and unwind with continue or break.
//
// The Manager multiplexes many concurrent sessions over one shared,
// read-only program. Each session owns an isolated state store and frame
// stack, executes cooperatively on its own goroutine, and can be aborted
// at any suspension point without disturbing its neighbors.
//
// The semantic pieces are pluggable oracles behind the interfaces in the
// api package; OpenAI-backed implementations live under provider/openai.
package lotus
