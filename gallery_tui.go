package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kir-gadjello/aperture/gallery"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	frame      = lipgloss.NewStyle().Margin(1, 2)
)

// tuiSink collects what a gallery operation asked of the UI while it ran in
// a command goroutine. Confirmations are asked by the model beforehand, so
// Confirm returns the stored answer.
type tuiSink struct {
	mu       sync.Mutex
	answer   bool
	alerts   []string
	reload   bool
	navigate string
}

func (s *tuiSink) arm(answer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = answer
	s.alerts = nil
	s.reload = false
	s.navigate = ""
}

func (s *tuiSink) Alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
}

func (s *tuiSink) Confirm(string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

func (s *tuiSink) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload = true
}

func (s *tuiSink) Navigate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = path
}

type galleryOpMsg struct {
	ok       bool
	alerts   []string
	reload   bool
	navigate string
}

func (s *tuiSink) result(ok bool) galleryOpMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return galleryOpMsg{ok: ok, alerts: s.alerts, reload: s.reload, navigate: s.navigate}
}

type galleryMode int

const (
	modeFolders galleryMode = iota
	modeImages
	modeNewFolder
	modeConfirm
	modeExif
)

type galleryItem string

func (g galleryItem) Title() string       { return string(g) }
func (g galleryItem) Description() string { return "" }
func (g galleryItem) FilterValue() string { return string(g) }

type galleryTui struct {
	ctx    context.Context
	ctrl   *gallery.Controller
	sink   *tuiSink
	lister gallery.Lister

	mode     galleryMode
	back     galleryMode
	question string
	pending  func() bool

	folders list.Model
	images  list.Model
	input   textinput.Model
	exif    viewport.Model

	busy   bool
	alert  string
	notice string
	width  int
	height int
}

func newGalleryTui(ctx context.Context, api gallery.API, lister gallery.Lister, folder string) galleryTui {
	sink := &tuiSink{}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false

	folders := list.New(nil, delegate, 0, 0)
	folders.Title = "Folders"
	folders.Styles.Title = titleStyle
	folders.SetShowHelp(false)

	images := list.New(nil, delegate, 0, 0)
	images.Styles.Title = titleStyle
	images.SetShowHelp(false)

	ti := textinput.New()
	ti.Placeholder = "Folder name"
	ti.CharLimit = 255

	m := galleryTui{
		ctx:     ctx,
		sink:    sink,
		lister:  lister,
		ctrl:    gallery.NewController(api, sink, sink, gallery.Page{}),
		folders: folders,
		images:  images,
		input:   ti,
		exif:    viewport.New(60, 12),
		width:   80,
		height:  24,
	}
	m.loadFolders()
	if folder != "" {
		m.openFolder(folder)
	}
	return m
}

func (m galleryTui) Init() tea.Cmd {
	return nil
}

func (m *galleryTui) loadFolders() {
	names, err := m.lister.Folders()
	if err != nil {
		m.alert = err.Error()
		return
	}
	items := make([]list.Item, len(names))
	for i, n := range names {
		items[i] = galleryItem(n)
	}
	m.folders.SetItems(items)
}

func (m *galleryTui) openFolder(folder string) {
	names, err := m.lister.Images(folder)
	if err != nil {
		m.alert = err.Error()
		names = nil
	}
	m.ctrl.SetPage(gallery.Page{Folder: folder, Images: names})
	m.images.Title = folder
	m.syncImages()
	m.mode = modeImages
}

func (m *galleryTui) syncImages() {
	page := m.ctrl.Page()
	items := make([]list.Item, len(page.Images))
	for i, n := range page.Images {
		items[i] = galleryItem(n)
	}
	m.images.SetItems(items)
}

// run executes op off the update loop with the sink pre-answered.
func (m *galleryTui) run(answer bool, op func() bool) tea.Cmd {
	m.busy = true
	m.alert = ""
	sink := m.sink
	return func() tea.Msg {
		sink.arm(answer)
		return sink.result(op())
	}
}

func (m *galleryTui) ask(question string, op func() bool) {
	m.back = m.mode
	m.mode = modeConfirm
	m.question = question
	m.pending = op
}

func selected(l list.Model) (string, bool) {
	it, ok := l.SelectedItem().(galleryItem)
	return string(it), ok
}

func (m galleryTui) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h, v := frame.GetFrameSize()
		m.folders.SetSize(msg.Width-h, msg.Height-v-2)
		m.images.SetSize(msg.Width-h, msg.Height-v-2)
		m.exif.Width = msg.Width - h - 4
		m.exif.Height = msg.Height - v - 4
		return m, nil

	case galleryOpMsg:
		m.busy = false
		if len(msg.alerts) > 0 {
			m.alert = msg.alerts[len(msg.alerts)-1]
		}
		if msg.navigate != "" {
			m.ctrl.SetPage(gallery.Page{})
			m.loadFolders()
			m.mode = modeFolders
			return m, nil
		}
		if msg.reload {
			m.loadFolders()
			if m.mode == modeImages {
				m.openFolder(m.ctrl.Page().Folder)
			}
		}
		if mod := m.ctrl.Modal(); mod != nil && mod.Open {
			m.exif.SetContent(sanitize(mod.Text))
			m.exif.GotoTop()
			m.back = m.mode
			m.mode = modeExif
		}
		m.syncImages()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.mode {
		case modeNewFolder:
			return m.updateNewFolder(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeExif:
			return m.updateExif(msg)
		case modeFolders:
			if m.folders.FilterState() != list.Filtering {
				if next, cmd, handled := m.folderKeys(msg); handled {
					return next, cmd
				}
			}
		case modeImages:
			if m.images.FilterState() != list.Filtering {
				if next, cmd, handled := m.imageKeys(msg); handled {
					return next, cmd
				}
			}
		}
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeFolders:
		m.folders, cmd = m.folders.Update(msg)
	case modeImages:
		m.images, cmd = m.images.Update(msg)
	}
	return m, cmd
}

func (m galleryTui) folderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return m, tea.Quit, true
	case "enter":
		if name, ok := selected(m.folders); ok {
			m.alert = ""
			m.openFolder(name)
		}
		return m, nil, true
	case "n":
		return m.startNewFolder(), textinput.Blink, true
	case "r":
		m.loadFolders()
		return m, nil, true
	}
	return m, nil, false
}

func (m galleryTui) imageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	ctx, ctrl := m.ctx, m.ctrl
	switch msg.String() {
	case "q":
		return m, tea.Quit, true
	case "esc", "backspace":
		m.ctrl.SetPage(gallery.Page{})
		m.mode = modeFolders
		m.alert = ""
		return m, nil, true
	case "n":
		return m.startNewFolder(), textinput.Blink, true
	case "x", "enter":
		if name, ok := selected(m.images); ok {
			return m, m.run(true, func() bool { return ctrl.ViewExif(ctx, name) }), true
		}
		return m, nil, true
	case "d":
		if name, ok := selected(m.images); ok {
			m.ask(gallery.AskDeleteImage, func() bool { return ctrl.DeleteImage(ctx, name) })
		}
		return m, nil, true
	case "D":
		m.ask(gallery.AskDeleteFolder, func() bool { return ctrl.DeleteFolder(ctx) })
		return m, nil, true
	case "c":
		if name, ok := selected(m.images); ok {
			m.copy(name)
		}
		return m, nil, true
	}
	return m, nil, false
}

func (m galleryTui) startNewFolder() galleryTui {
	m.back = m.mode
	m.mode = modeNewFolder
	m.input.Reset()
	m.input.Focus()
	return m
}

func (m galleryTui) updateNewFolder(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.mode = m.back
		return m, nil
	case tea.KeyEnter:
		name := m.input.Value()
		m.input.Blur()
		m.mode = m.back
		ctx, ctrl := m.ctx, m.ctrl
		return m, m.run(true, func() bool { return ctrl.CreateFolder(ctx, name) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m galleryTui) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	op := m.pending
	switch msg.String() {
	case "y", "Y", "enter":
		m.mode = m.back
		m.pending = nil
		if op == nil {
			return m, nil
		}
		return m, m.run(true, op)
	case "n", "N", "esc", "q":
		m.mode = m.back
		m.pending = nil
	}
	return m, nil
}

func (m galleryTui) updateExif(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "enter":
		m.ctrl.CloseModal()
		m.mode = m.back
		return m, nil
	case "c":
		if mod := m.ctrl.Modal(); mod != nil {
			m.copy(mod.Text)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.exif, cmd = m.exif.Update(msg)
	return m, cmd
}

func (m *galleryTui) copy(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.notice = fmt.Sprintf("Error copying to clipboard: %v", err)
		return
	}
	m.notice = "✓ Copied."
}

func (m galleryTui) footer() string {
	var line string
	switch m.mode {
	case modeFolders:
		line = "enter open • n new folder • r reload • q quit"
	case modeImages:
		line = "x exif • d remove image • D delete folder • n new folder • c copy name • esc back"
	case modeExif:
		line = "c copy • esc close"
	}
	out := dimStyle.Render(line)
	if m.busy {
		out = dimStyle.Render("Working...")
	}
	if m.notice != "" {
		out += "\n" + dimStyle.Render(m.notice)
	}
	if m.alert != "" {
		out += "\n" + alertStyle.Render(m.alert)
	}
	return out
}

func (m galleryTui) View() string {
	var body string
	switch m.mode {
	case modeFolders:
		body = m.folders.View()
	case modeImages:
		body = m.images.View()
	case modeNewFolder:
		body = titleStyle.Render("New folder") + "\n\n" + m.input.View()
	case modeConfirm:
		body = m.question + " " + dimStyle.Render("[") + keyStyle.Render("y/N") + dimStyle.Render("]")
	case modeExif:
		title := "EXIF"
		if mod := m.ctrl.Modal(); mod != nil {
			title = "EXIF: " + sanitize(mod.Filename)
		}
		body = modalStyle.Render(titleStyle.Render(title) + "\n" + m.exif.View())
	}
	return frame.Render(body + "\n" + m.footer())
}
