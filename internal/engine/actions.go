package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/BrainbaseHQ/lotus-prompt/events"
	"github.com/BrainbaseHQ/lotus-prompt/metrics"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/slogx"
	"github.com/BrainbaseHQ/lotus-prompt/script"
)

// execBlock runs a statement sequence strictly in program order. It
// returns the first control signal reached; statements after a continue,
// break, or transfer never run. A nested loop returns sigPush after
// stashing the rest of the block in the frame's resume slice.
func (e *Engine) execBlock(ctx context.Context, f *Frame, stmts []script.Statement) (signal, error) {
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return sigFallthrough, ErrSessionAborted
		}

		switch s := stmt.(type) {
		case *script.Say:
			e.execSay(ctx, f, s)

		case *script.SetState:
			value := e.resolveValue(ctx, f, s.Value)
			if err := e.store.Set(ctx, s.Key, value); err != nil {
				return sigFallthrough, fmt.Errorf("set state %q: %w", s.Key, err)
			}

		case *script.Extract:
			e.execExtract(ctx, f, s)

		case *script.Summarize:
			e.execSummarize(ctx, f, s)

		case *script.HTTPGet:
			if e.http == nil {
				e.bindFailure(ctx, f,s.Into, fmt.Errorf("no http client configured"))
				continue
			}
			url, err := e.render(ctx, f, s.URL)
			if err != nil {
				e.bindFailure(ctx, f,s.Into, err)
				continue
			}
			result, err := e.http.Get(ctx, url, s.Headers)
			if err != nil {
				if ctx.Err() != nil {
					return sigFallthrough, ErrSessionAborted
				}
				e.bindFailure(ctx, f,s.Into, err)
				continue
			}
			e.bind(f, s.Into, result)

		case *script.HTTPPost:
			if e.http == nil {
				e.bindFailure(ctx, f,s.Into, fmt.Errorf("no http client configured"))
				continue
			}
			url, err := e.render(ctx, f, s.URL)
			if err != nil {
				e.bindFailure(ctx, f,s.Into, err)
				continue
			}
			body := make(map[string]any, len(s.Body))
			for key, value := range s.Body {
				body[key] = e.resolveValue(ctx, f, value)
			}
			result, err := e.http.Post(ctx, url, s.Headers, body)
			if err != nil {
				if ctx.Err() != nil {
					return sigFallthrough, ErrSessionAborted
				}
				e.bindFailure(ctx, f,s.Into, err)
				continue
			}
			e.bind(f, s.Into, result)

		case *script.Sleep:
			if err := e.sleep(ctx, s.Seconds); err != nil {
				return sigFallthrough, err
			}

		case *script.Transfer:
			metrics.Transfers.Inc()
			e.publish(ctx, events.Transfer{
				SessionID:   e.sessionID,
				Destination: s.Destination,
				Timestamp:   now(),
			})
			return sigTransfer, nil

		case *script.If:
			branch := s.Else
			if e.evalCond(ctx, f, s.Cond) {
				branch = s.Then
			}
			sig, err := e.execBlock(ctx, f, branch)
			if err != nil {
				return sigFallthrough, err
			}
			if sig != sigFallthrough {
				if sig == sigPush {
					// The nested loop's resume must also cover the statements
					// after this if. Copy: resume currently aliases the AST.
					rest := make([]script.Statement, 0, len(f.resume)+len(stmts)-i-1)
					rest = append(rest, f.resume...)
					rest = append(rest, stmts[i+1:]...)
					f.resume = rest
				}
				return sig, nil
			}

		case *script.Continue:
			return sigContinue, nil

		case *script.Break:
			return sigBreak, nil

		case *script.Loop:
			if f.depth+1 > e.config.MaxDepth {
				return sigFallthrough, fmt.Errorf("%w: depth %d", ErrDepthCeiling, f.depth+1)
			}
			f.resume = stmts[i+1:]
			e.push(newFrame(s, f))
			return sigPush, nil

		case *script.Talk:
			// Validation rejects these; reaching one means the program was
			// not loaded through script.Decode.
			return sigFallthrough, fmt.Errorf("talk statement outside a loop")

		default:
			return sigFallthrough, fmt.Errorf("unknown statement type %T", stmt)
		}
	}
	return sigFallthrough, nil
}

func (e *Engine) execSay(ctx context.Context, f *Frame, s *script.Say) {
	message, err := e.render(ctx, f, s.Message)
	if err != nil {
		e.warn(ctx, "say template failed", err)
		return
	}
	e.publish(ctx, events.Say{
		SessionID: e.sessionID,
		Message:   message,
		Exact:     s.Exact,
		Model:     s.Model,
		Timestamp: now(),
	})
	if e.sayer != nil {
		if err := e.sayer.Say(ctx, e.sessionID, message, s.Exact, s.Model); err != nil {
			e.warn(ctx, "say delivery failed", err)
		}
	}
}

func (e *Engine) execExtract(ctx context.Context, f *Frame, s *script.Extract) {
	content, ok := e.contentOf(ctx, f, s.From)
	if !ok {
		e.bindFailure(ctx, f,s.Into, fmt.Errorf("no content to extract from"))
		return
	}
	schema := api.SchemaOf(s.Example)
	fields, err := e.extractor.Extract(ctx, content, s.Question, schema)
	if err != nil {
		e.bindFailure(ctx, f,s.Into, err)
		return
	}
	resolved := fields.Map()
	e.bind(f, s.Into, resolved)
	e.publish(ctx, events.Extraction{
		SessionID: e.sessionID,
		Into:      s.Into,
		Fields:    resolved,
		Timestamp: now(),
	})
}

func (e *Engine) execSummarize(ctx context.Context, f *Frame, s *script.Summarize) {
	content, ok := e.contentOf(ctx, f, s.From)
	if !ok {
		e.bindFailure(ctx, f,s.Into, fmt.Errorf("no content to summarize"))
		return
	}
	summary, err := e.extractor.Summarize(ctx, content, s.Focus, s.Format)
	if err != nil {
		e.bindFailure(ctx, f,s.Into, err)
		return
	}
	e.bind(f, s.Into, summary)
}

// contentOf resolves the content source of an extract or summarize
// statement. An empty From defaults to the latest exchange.
func (e *Engine) contentOf(ctx context.Context, f *Frame, from string) (string, bool) {
	if from == "" {
		from = "$turn"
	}
	value, ok := e.resolveRef(ctx, f, from)
	if !ok || value == nil {
		return "", false
	}
	if s, ok := value.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", value), true
}

func (e *Engine) bind(f *Frame, name string, value any) {
	if name == "" {
		return
	}
	f.bindings[name] = value
}

// bindFailure surfaces an external call failure to the block as data.
// Unhandled by the script, it degrades to a warning and the loop resumes.
func (e *Engine) bindFailure(ctx context.Context, f *Frame, name string, err error) {
	metrics.ExternalCallFailures.Inc()
	e.warn(ctx, "external call failed", err)
	e.bind(f, name, map[string]any{"error": err.Error()})
}

func (e *Engine) sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrSessionAborted
	}
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	slog.WarnContext(ctx, msg, slogx.Error(err), slogx.SessionID(e.sessionID))
}
