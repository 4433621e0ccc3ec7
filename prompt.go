package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var (
	keyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))  // Cyan
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Dimmed
)

func isInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func readSingleKey() (rune, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return 0, err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	b := make([]byte, 1)
	if _, err := os.Stdin.Read(b); err != nil {
		return 0, err
	}
	return rune(b[0]), nil
}

// cliPrompter answers gallery.Prompter on a plain terminal. On a TTY a
// confirmation is a single keypress, otherwise a line is read from in.
type cliPrompter struct {
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	assumeYes bool
	singleKey bool
}

func newCLIPrompter(in io.Reader, out, errOut io.Writer, assumeYes bool) *cliPrompter {
	singleKey := false
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		singleKey = isInteractive(os.Stdin.Fd())
	}
	return &cliPrompter{
		in:        bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		assumeYes: assumeYes,
		singleKey: singleKey,
	}
}

func (p *cliPrompter) Alert(message string) {
	color.New(color.FgRed, color.Bold).Fprintf(p.errOut, "✗ %s\n", message)
}

func (p *cliPrompter) Confirm(question string) bool {
	if p.assumeYes {
		return true
	}
	fmt.Fprintf(p.out, "%s %s%s%s ", question, dimStyle.Render("["), keyStyle.Render("y/N"), dimStyle.Render("]"))

	if p.singleKey {
		key, err := readSingleKey()
		fmt.Fprintln(p.out)
		return err == nil && (key == 'y' || key == 'Y')
	}

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
