package console

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"

	"github.com/BrainbaseHQ/lotus-prompt/events"
)

// Hook renders session events on the terminal. Agent and user messages
// already flow through the Transport, so it only reports the
// side-channel events: extractions, transfers, errors, and the end of
// the session. With debug enabled it also dumps every turn.
type Hook struct {
	events.NoopHook

	out     io.Writer
	debug   bool
	printer *pp.PrettyPrinter
}

func NewHook(out io.Writer, debug bool) *Hook {
	printer := pp.New()
	printer.SetOutput(out)
	return &Hook{out: out, debug: debug, printer: printer}
}

func (h *Hook) OnTurn(ctx context.Context, evt events.Turn) {
	if h.debug {
		h.printer.Println(evt)
	}
}

func (h *Hook) OnExtraction(ctx context.Context, evt events.Extraction) {
	fmt.Fprintf(h.out, "%s %s\n", color.YellowString("extracted"), evt.Into)
	if h.debug {
		h.printer.Println(evt.Fields)
	}
}

func (h *Hook) OnTransfer(ctx context.Context, evt events.Transfer) {
	fmt.Fprintf(h.out, "%s %s\n", color.YellowString("transferring to"), evt.Destination)
}

func (h *Hook) OnError(ctx context.Context, evt events.Error) {
	fmt.Fprintf(h.out, "%s: %s\n", color.RedString("error"), evt.Message)
}

func (h *Hook) OnEnd(ctx context.Context, evt events.End) {
	fmt.Fprintf(h.out, "\nsession ended (%s)\n", evt.Reason)
}
