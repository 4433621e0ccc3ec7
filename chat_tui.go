package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	markdown "github.com/vlanse/go-term-markdown"

	"github.com/kir-gadjello/aperture/agent"
	"github.com/kir-gadjello/aperture/chat"
	"github.com/kir-gadjello/aperture/reveal"
)

const inputPlaceholder = "Type a message and press Enter to send..."

var (
	youStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	agentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	loadingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240"))
	blockStyle   = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // Orange
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("171"))
)

type replyMsg struct {
	turn  chat.Turn
	reply agent.Reply
	err   error
}

type confirmReplyMsg struct {
	turn  chat.ConfirmTurn
	reply agent.Reply
	err   error
}

type undoReplyMsg struct {
	res agent.UndoResult
	err error
}

type chatTuiState struct {
	ctx      context.Context
	ctrl     *chat.Controller
	revealer *reveal.Revealer
	// Messages whose history save waits for their reveal to finish.
	persistOnDone map[int]bool
	// Blocks of a revealing message that were already on screen.
	keepBlocks map[int]int

	spinner  spinner.Model
	viewport viewport.Model
	textarea textarea.Model

	renderMarkdown bool
	viewportWidth  int
	notice         string
}

func newChatTui(ctx context.Context, ctrl *chat.Controller, delay time.Duration, renderMarkdown bool) chatTuiState {
	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 100000
	ta.MaxHeight = 8
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.SetHeight(3)

	vp := viewport.New(80, 12)
	vp.MouseWheelEnabled = true

	sp := spinner.New()
	sp.Spinner = spinner.Pulse
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("171"))

	m := chatTuiState{
		ctx:            ctx,
		ctrl:           ctrl,
		revealer:       reveal.New(delay),
		persistOnDone:  make(map[int]bool),
		keepBlocks:     make(map[int]int),
		spinner:        sp,
		viewport:       vp,
		textarea:       ta,
		renderMarkdown: renderMarkdown,
		viewportWidth:  80,
	}
	m.refresh()
	return m
}

func (m chatTuiState) Init() tea.Cmd {
	return textarea.Blink
}

func (m chatTuiState) sendCmd(turn chat.Turn) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.ctrl.Send(m.ctx, turn)
		return replyMsg{turn: turn, reply: reply, err: err}
	}
}

func (m chatTuiState) confirmCmd(turn chat.ConfirmTurn) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.ctrl.SendConfirm(m.ctx, turn)
		return confirmReplyMsg{turn: turn, reply: reply, err: err}
	}
}

func (m chatTuiState) undoCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.ctrl.SendUndo(m.ctx)
		return undoReplyMsg{res: res, err: err}
	}
}

// apply starts the reveal for an outcome. History is saved and the input
// re-enabled when the reveal reports done.
func (m chatTuiState) apply(out chat.Outcome) tea.Cmd {
	m.keepBlocks[out.Index] = out.KeepBlocks
	if out.Persist {
		m.persistOnDone[out.Index] = true
	} else {
		delete(m.persistOnDone, out.Index)
	}
	return m.revealer.Start(out.Index, sanitize(out.Reveal))
}

func (m chatTuiState) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			turn, err := m.ctrl.Begin(m.textarea.Value())
			switch {
			case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrBusy):
				return m, nil
			case err != nil:
				m.notice = err.Error()
				return m, nil
			}
			m.notice = ""
			m.textarea.Reset()
			m.textarea.Blur()
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.sendCmd(turn))

		case tea.KeyCtrlY:
			idx, ok := m.ctrl.PendingConfirmation()
			if !ok {
				return m, nil
			}
			turn, err := m.ctrl.BeginConfirm(idx)
			if err != nil {
				return m, nil
			}
			m.refresh()
			return m, m.confirmCmd(turn)

		case tea.KeyCtrlU:
			if err := m.ctrl.BeginUndo(); err != nil {
				if errors.Is(err, chat.ErrUndoDisabled) {
					m.notice = "Undo is not enabled for this server."
				}
				return m, nil
			}
			return m, m.undoCmd()

		case tea.KeyCtrlE:
			if text, ok := lastAgentText(m.ctrl.Messages()); ok {
				if err := clipboard.WriteAll(text); err != nil {
					m.notice = fmt.Sprintf("Error copying to clipboard: %v", err)
				} else {
					m.notice = "✓ Copied the last reply."
				}
			}
			return m, nil
		}

		if !m.ctrl.InputEnabled() {
			// Scrolling still works while a reply is pending.
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case tea.WindowSizeMsg:
		m.textarea.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width - 2
		m.viewportWidth = msg.Width - 2
		m.viewport.Height = msg.Height - 2 - m.textarea.Height()
		m.refresh()

	case replyMsg:
		out := m.ctrl.Complete(msg.turn, msg.reply, msg.err)
		cmds = append(cmds, m.apply(out))
		m.refresh()

	case confirmReplyMsg:
		out := m.ctrl.CompleteConfirm(msg.turn, msg.reply, msg.err)
		cmds = append(cmds, m.apply(out))
		m.refresh()

	case undoReplyMsg:
		m.ctrl.CompleteUndo(msg.res, msg.err)
		m.notice = ""

	case reveal.TickMsg:
		cmds = append(cmds, m.revealer.Update(msg))
		m.refresh()

	case reveal.DoneMsg:
		if m.persistOnDone[msg.Target] {
			delete(m.persistOnDone, msg.Target)
			m.ctrl.Persist()
		}
		delete(m.keepBlocks, msg.Target)
		m.ctrl.FinishReveal(msg.Target)
		if m.ctrl.InputEnabled() {
			m.textarea.Focus()
		}
		m.refresh()

	case spinner.TickMsg:
		if m.ctrl.InputEnabled() {
			return m, nil
		}
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		m.refresh()
		return m, spCmd
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, tiCmd, vpCmd)
	return m, tea.Batch(cmds...)
}

func (m *chatTuiState) refresh() {
	content := m.transcript()
	if content == "" {
		content = "<chat history is empty>"
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m chatTuiState) transcript() string {
	var b strings.Builder
	for i, msg := range m.ctrl.Messages() {
		if msg.Speaker == chat.You {
			b.WriteString(youStyle.Render("You:"))
		} else {
			b.WriteString(agentStyle.Render("Agent:"))
		}
		b.WriteString("\n")

		switch {
		case msg.Loading:
			b.WriteString(m.spinner.View() + " " + loadingStyle.Render(msg.Text))
		case m.revealer.Active(i):
			b.WriteString(m.revealer.Visible(i, sanitize(msg.Text)))
		case strings.HasPrefix(msg.Text, "Error: ") && msg.Speaker == chat.Agent:
			b.WriteString(errorStyle.Render(sanitize(msg.Text)))
		case msg.Speaker == chat.Agent && m.renderMarkdown:
			b.WriteString(renderMarkdownCached(sanitize(msg.Text), m.viewportWidth))
		default:
			b.WriteString(sanitize(msg.Text))
		}
		b.WriteString("\n")

		blocks, revealing := msg.Blocks, m.ctrl.Revealing(i)
		if revealing && m.keepBlocks[i] < len(blocks) {
			blocks = blocks[:m.keepBlocks[i]]
		}
		for _, blk := range blocks {
			body := sanitize(blk.Body)
			switch blk.Kind {
			case chat.PreviewBlock:
				b.WriteString(blockStyle.Render("Preview\n"+body) + "\n")
			case chat.ResultBlock:
				b.WriteString(blockStyle.Render(body) + "\n")
			case chat.ErrorBlock:
				b.WriteString(blockStyle.Render(errorStyle.Render(body)) + "\n")
			}
		}
		if cf := msg.Confirm; cf != nil && !revealing {
			label := cf.State.Label()
			if cf.State == chat.ConfirmPending {
				label = keyStyle.Render("ctrl+y") + " " + label
			}
			b.WriteString(confirmStyle.Render("[ ") + label + confirmStyle.Render(" ]") + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m chatTuiState) statusLine() string {
	var parts []string
	if m.ctrl.UndoEnabled() {
		label := m.ctrl.UndoLabel()
		if !m.ctrl.UndoRunning() {
			label = keyStyle.Render("ctrl+u") + " " + label
		}
		parts = append(parts, label)
	}
	if s := m.ctrl.Status(); s != "" {
		parts = append(parts, statusStyle.Render(s))
	}
	if m.notice != "" {
		parts = append(parts, dimStyle.Render(m.notice))
	}
	return strings.Join(parts, dimStyle.Render(" | "))
}

func (m chatTuiState) View() string {
	return fmt.Sprintf("%s\n%s\n%s\n", m.viewport.View(), m.statusLine(), m.textarea.View())
}

func lastAgentText(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Speaker == chat.Agent && !msgs[i].Loading {
			return msgs[i].Text, true
		}
	}
	return "", false
}

var markdownCache = struct {
	sync.Mutex
	cache map[string]string
}{cache: make(map[string]string)}

func renderMarkdownCached(content string, width int) string {
	key := fmt.Sprintf("%s__%d", content, width)
	markdownCache.Lock()
	defer markdownCache.Unlock()
	if cached, ok := markdownCache.cache[key]; ok {
		return cached
	}
	rendered := strings.TrimRight(string(markdown.Render(content, width, 0)), " \t\r\n")
	markdownCache.cache[key] = rendered
	return rendered
}
