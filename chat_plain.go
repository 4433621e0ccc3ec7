package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kir-gadjello/aperture/chat"
	"github.com/kir-gadjello/aperture/reveal"
)

var (
	youLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	agentLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	blockColor = color.New(color.Faint).SprintFunc()
	errColor   = color.New(color.FgRed).SprintFunc()
)

// plainChat is the line-mode chat used when stdin or stdout is not a
// terminal. Lines "/undo" and "exit" are commands.
type plainChat struct {
	ctrl  *chat.Controller
	in    io.Reader
	out   io.Writer
	delay time.Duration

	lines chan string
	done  chan struct{}
}

// readLines feeds lines from in until it ends or run returns. It runs on its
// own goroutine so a cancelled context can interrupt a pending read.
func (p *plainChat) readLines() {
	defer close(p.lines)
	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.done:
			return
		}
	}
}

func (p *plainChat) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-p.lines:
		return line, ok
	}
}

func (p *plainChat) run(ctx context.Context) error {
	p.lines = make(chan string)
	p.done = make(chan struct{})
	defer close(p.done)
	go p.readLines()

	for _, m := range p.ctrl.Messages() {
		p.printMessage(m, m.Text)
	}

	for {
		fmt.Fprint(p.out, youLabel("You: "))
		line, ok := p.readLine(ctx)
		if !ok {
			fmt.Fprintln(p.out)
			return nil
		}

		switch strings.TrimSpace(line) {
		case "exit", "quit":
			return nil
		case "/undo":
			p.undo(ctx)
			continue
		}

		if err := p.turn(ctx, line); err != nil {
			return err
		}
	}
}

func (p *plainChat) turn(ctx context.Context, line string) error {
	turn, err := p.ctrl.Begin(line)
	if errors.Is(err, chat.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}

	reply, err := p.ctrl.Send(ctx, turn)
	out := p.ctrl.Complete(turn, reply, err)
	if err := p.show(ctx, out); err != nil {
		return err
	}

	m := p.ctrl.Messages()[out.Index]
	if m.Confirm == nil || m.Confirm.State != chat.ConfirmPending {
		return nil
	}
	fmt.Fprintf(p.out, "%s? [y/N] ", m.Confirm.State.Label())
	answer, _ := p.readLine(ctx)
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return nil
	}

	ct, err := p.ctrl.BeginConfirm(out.Index)
	if err != nil {
		return nil
	}
	reply, err = p.ctrl.SendConfirm(ctx, ct)
	return p.show(ctx, p.ctrl.CompleteConfirm(ct, reply, err))
}

// show prints the message an outcome touched, animating its text, and saves
// history once the text is out.
func (p *plainChat) show(ctx context.Context, out chat.Outcome) error {
	defer p.ctrl.FinishReveal(out.Index)
	m := p.ctrl.Messages()[out.Index]

	fmt.Fprint(p.out, agentLabel("Agent: "))
	if out.Reveal != "" {
		if err := reveal.Play(ctx, p.out, sanitize(out.Reveal), p.delay); err != nil {
			fmt.Fprintln(p.out)
			return err
		}
	} else if strings.HasPrefix(m.Text, "Error: ") {
		fmt.Fprint(p.out, errColor(sanitize(m.Text)))
	} else {
		fmt.Fprint(p.out, sanitize(m.Text))
	}
	fmt.Fprintln(p.out)
	p.printBlocks(m)

	if out.Persist {
		p.ctrl.Persist()
	}
	return nil
}

func (p *plainChat) printMessage(m chat.Message, text string) {
	label := agentLabel("Agent: ")
	if m.Speaker == chat.You {
		label = youLabel("You: ")
	}
	fmt.Fprintf(p.out, "%s%s\n", label, sanitize(text))
	p.printBlocks(m)
}

func (p *plainChat) printBlocks(m chat.Message) {
	for _, b := range m.Blocks {
		body := sanitize(b.Body)
		switch b.Kind {
		case chat.PreviewBlock:
			fmt.Fprintf(p.out, "%s\n%s\n", blockColor("Preview:"), blockColor(body))
		case chat.ResultBlock:
			fmt.Fprintf(p.out, "%s\n", blockColor(body))
		case chat.ErrorBlock:
			fmt.Fprintf(p.out, "%s\n", errColor(body))
		}
	}
}

func (p *plainChat) undo(ctx context.Context) {
	if err := p.ctrl.BeginUndo(); err != nil {
		fmt.Fprintln(p.out, errColor("Undo is not enabled for this server."))
		return
	}
	res, err := p.ctrl.SendUndo(ctx)
	if p.ctrl.CompleteUndo(res, err) {
		fmt.Fprintln(p.out, blockColor(p.ctrl.Status()))
	} else {
		fmt.Fprintln(p.out, errColor(p.ctrl.Status()))
	}
}
