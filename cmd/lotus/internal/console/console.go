// Package console adapts a lotus session to an interactive terminal:
// a stdin/stdout transport for the exchange loop and a hook that
// renders session events.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/BrainbaseHQ/lotus-prompt/pkg/stdx"
)

var glam = stdx.Must1(glamour.NewTermRenderer(
	glamour.WithAutoStyle(),
))

// Transport reads user messages from in and writes agent messages to
// out. It implements api.Transport for one interactive session at a
// time.
type Transport struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewTransport(in io.Reader, out io.Writer) *Transport {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanLines)
	return &Transport{scanner: scanner, out: out}
}

func (t *Transport) Deliver(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rendered, err := glam.Render(message)
	if err != nil {
		rendered = message
	}
	fmt.Fprint(t.out, color.MagentaString("Agent")+": ")
	fmt.Fprintln(t.out, rendered)
	return nil
}

func (t *Transport) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(t.out, "%s: ", color.CyanString("User"))
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return t.scanner.Text(), nil
}
