// Package tui hosts a stream in a full-screen bubbletea program.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/docker/mdstream/pkg/adapter"
	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/surface"
)

// DefaultInterval is the tick at which deferred renders are flushed.
const DefaultInterval = 16 * time.Millisecond

// Streamer is the part of a stream the program drives. All calls happen on
// the program goroutine.
type Streamer interface {
	Stream(chunk string)
	SetContent(md string)
	StreamEvent(ctx context.Context, ev adapter.Event) error
	Render()
	Flush() int
}

// ChunkMsg carries a markdown chunk from a producer goroutine.
type ChunkMsg string

// ContentMsg replaces the whole document.
type ContentMsg string

// EventMsg carries an agent event from a producer goroutine.
type EventMsg adapter.Event

// DoneMsg tells the program that the producer finished.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

// KeyMap defines the key bindings of the viewer.
type KeyMap struct {
	Quit   key.Binding
	Top    key.Binding
	Follow key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Follow: key.NewBinding(
			key.WithKeys("G", "end", "f"),
			key.WithHelp("G", "follow"),
		),
	}
}

type Option func(*Model)

func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}

func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		m.interval = d
	}
}

func WithTheme(theme *styles.Theme) Option {
	return func(m *Model) {
		m.theme = theme
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// QuitOnDone makes the program exit once the producer is done and the last
// render is flushed.
func QuitOnDone() Option {
	return func(m *Model) {
		m.quitOnDone = true
	}
}

// Model is a tea.Model and the surface.Surface of the stream it hosts.
type Model struct {
	ctx      context.Context
	canvas   *surface.Canvas
	viewport viewport.Model
	keyMap   KeyMap
	streamer Streamer
	theme    *styles.Theme
	logger   *slog.Logger

	title      string
	interval   time.Duration
	quitOnDone bool

	follow        bool
	scrollPending bool
	done          bool
	err           error
	repaints      int
	width         int
	height        int
}

// New creates a model sized width x height. Attach the stream that renders
// to it before running the program.
func New(ctx context.Context, width, height int, opts ...Option) *Model {
	m := &Model{
		ctx:      ctx,
		canvas:   surface.NewCanvas(width, 0),
		keyMap:   DefaultKeyMap(),
		theme:    styles.Default(),
		logger:   slog.Default(),
		title:    "mdstream",
		interval: DefaultInterval,
		follow:   true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.viewport = viewport.New(
		viewport.WithWidth(width),
		viewport.WithHeight(max(height-1, 1)),
	)
	m.width, m.height = width, height
	return m
}

// Attach sets the stream driven by the program.
func (m *Model) Attach(s Streamer) {
	m.streamer = s
}

// Err returns the error reported by the producer, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keyMap.Top):
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keyMap.Follow):
			m.follow = true
			m.viewport.GotoBottom()
			return m, nil
		}

	case ChunkMsg:
		if m.streamer != nil {
			m.streamer.Stream(string(msg))
		}
		return m, nil

	case ContentMsg:
		if m.streamer != nil {
			m.streamer.SetContent(string(msg))
		}
		return m, nil

	case EventMsg:
		if m.streamer != nil {
			if err := m.streamer.StreamEvent(m.ctx, adapter.Event(msg)); err != nil {
				m.logger.Debug("Event rendered as plain text", "type", msg.Type, "error", err)
			}
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, nil

	case tickMsg:
		if m.streamer != nil {
			m.streamer.Flush()
		}
		if m.done && m.quitOnDone {
			return m, tea.Quit
		}
		return m, m.tick()
	}

	prev := m.viewport.YOffset()
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if m.viewport.YOffset() != prev {
		m.follow = m.viewport.AtBottom()
	}
	return m, cmd
}

func (m *Model) setSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.SetWidth(width)
	m.viewport.SetHeight(max(height-1, 1))
	m.canvas.Resize(width, 0)
	if m.streamer != nil {
		m.streamer.Render()
	}
}

func (m *Model) View() tea.View {
	view := tea.NewView(lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.statusLine()))
	view.AltScreen = true
	view.WindowTitle = m.title
	return view
}

func (m *Model) statusLine() string {
	state := m.theme.StreamingLabel.Render("● streaming")
	switch {
	case m.err != nil:
		state = fmt.Sprintf("error: %v", m.err)
	case m.done:
		state = "done"
	}
	follow := ""
	if !m.follow {
		follow = " · paused (G to follow)"
	}
	line := fmt.Sprintf(" %s · %s · %3.f%%%s · q quit", m.title, state, m.viewport.ScrollPercent()*100, follow)
	return m.theme.CodeLabel.Width(m.width).MaxWidth(m.width).Render(line)
}
