// Package reveal animates text one rune at a time.
//
// A Revealer runs at most one job per target. Starting a new job on a target
// supersedes the old one: ticks carry the job's token and ticks with a stale
// token are dropped, so the superseded animation stops at its next tick.
package reveal

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultDelay is the pause between two revealed runes.
const DefaultDelay = 18 * time.Millisecond

// TickMsg advances the job for Target if Token is still current.
type TickMsg struct {
	Target int
	Token  uint64
}

// DoneMsg is emitted once the whole text of Target is visible.
type DoneMsg struct {
	Target int
}

type job struct {
	text  []rune
	shown int
	token uint64
}

// Revealer tracks running reveal jobs. It is not safe for concurrent use; it
// belongs to the bubbletea model that owns the rendered text.
type Revealer struct {
	delay time.Duration
	jobs  map[int]*job
	next  uint64
}

func New(delay time.Duration) *Revealer {
	if delay < 0 {
		delay = 0
	}
	return &Revealer{delay: delay, jobs: make(map[int]*job)}
}

// Start begins revealing text on target, cancelling any job already running
// there. The returned command drives the animation.
func (r *Revealer) Start(target int, text string) tea.Cmd {
	r.next++
	j := &job{text: []rune(text), token: r.next}
	r.jobs[target] = j

	if len(j.text) == 0 {
		delete(r.jobs, target)
		return done(target)
	}
	return r.tick(target, j.token)
}

// Cancel stops the job on target; its text becomes fully visible.
func (r *Revealer) Cancel(target int) {
	delete(r.jobs, target)
}

// Active reports whether a job is running on target.
func (r *Revealer) Active(target int) bool {
	_, ok := r.jobs[target]
	return ok
}

// Update handles a TickMsg. Ticks of cancelled or superseded jobs yield nil.
func (r *Revealer) Update(msg TickMsg) tea.Cmd {
	j, ok := r.jobs[msg.Target]
	if !ok || j.token != msg.Token {
		return nil
	}

	j.shown++
	if j.shown >= len(j.text) {
		delete(r.jobs, msg.Target)
		return done(msg.Target)
	}
	return r.tick(msg.Target, j.token)
}

// Visible returns the part of full that should be on screen for target:
// the revealed prefix while a job runs, full otherwise.
func (r *Revealer) Visible(target int, full string) string {
	j, ok := r.jobs[target]
	if !ok {
		return full
	}
	return string(j.text[:j.shown])
}

func (r *Revealer) tick(target int, token uint64) tea.Cmd {
	return tea.Tick(r.delay, func(time.Time) tea.Msg {
		return TickMsg{Target: target, Token: token}
	})
}

func done(target int) tea.Cmd {
	return func() tea.Msg { return DoneMsg{Target: target} }
}

// Play writes text to w one rune at a time, pausing delay between runes. It
// returns early with ctx.Err() if ctx is cancelled.
func Play(ctx context.Context, w io.Writer, text string, delay time.Duration) error {
	var timer *time.Timer
	for i, ch := range text {
		if i > 0 && delay > 0 {
			if timer == nil {
				timer = time.NewTimer(delay)
				defer timer.Stop()
			} else {
				timer.Reset(delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.WriteString(w, string(ch)); err != nil {
			return err
		}
	}
	return nil
}
