package ui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/giftlist/internal/config"
	"github.com/five82/giftlist/internal/flow"
	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/live"
	"github.com/five82/giftlist/internal/prefs"
	"github.com/five82/giftlist/internal/state"
)

const (
	fieldName = iota
	fieldEmail
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Flow      *flow.Controller
	Reader    *live.Reader
	State     *state.Store
	Event     config.Event
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	flow      *flow.Controller
	reader    *live.Reader
	store     *state.Store
	event     config.Event
	prefsPath string
	pollTick  time.Duration
	logger    *slog.Logger
	keys      keyMap

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model

	// Login form
	inputs   [2]textinput.Model
	focus    int
	loginErr *gift.ProfileError

	// Gift list
	snapshot state.Snapshot
	cursor   int
	notice   string

	// Summary
	confirming bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.DefaultTheme
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := Model{
		ctx:       ctx,
		flow:      opts.Flow,
		reader:    opts.Reader,
		store:     opts.State,
		event:     opts.Event,
		prefsPath: opts.PrefsPath,
		pollTick:  pollTick,
		logger:    logger,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(themeName),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.inputs = newLoginInputs()
	return m
}

func newLoginInputs() [2]textinput.Model {
	name := textinput.New()
	name.Placeholder = "Your name"
	name.Prompt = "Name   "
	name.CharLimit = 80

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "E-mail "
	email.CharLimit = 120

	return [2]textinput.Model{name, email}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.pollTick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampCursor()
		return m, nil

	case confirmResultMsg:
		m.confirming = false
		if msg.err != nil {
			m.logger.Info("confirmation not completed", "error", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.spinning() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.page() == flow.StateLogin {
		return m.updateFocusedInput(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) page() flow.State {
	return m.flow.State()
}

func (m Model) spinning() bool {
	if m.confirming {
		return true
	}
	return m.page() == flow.StateGifts && m.snapshot.Loading()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// Letters belong to the form fields on the login page.
	if m.page() != flow.StateLogin {
		switch {
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.CycleTheme):
			m.theme = GetTheme(NextTheme(m.theme.Name))
			if m.prefsPath != "" {
				if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name}); err != nil {
					m.logger.Warn("save theme preference failed", "error", err)
				}
			}
			return m, nil
		}
	}

	switch m.page() {
	case flow.StateHome:
		return m.handleHomeKey(msg)
	case flow.StateLogin:
		return m.handleLoginKey(msg)
	case flow.StateGifts:
		return m.handleGiftsKey(msg)
	case flow.StateSummary:
		return m.handleSummaryKey(msg)
	case flow.StateThankYou:
		return m.handleThankYouKey(msg)
	}
	return m, nil
}

func (m Model) handleHomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Next) && msg.String() != " " {
		return m, nil
	}
	if err := m.flow.Start(); err != nil {
		return m, nil
	}
	m.loginErr = nil
	return m, m.focusField(fieldName)
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if err := m.flow.Back(); err == nil {
			m.blurFields()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m, m.focusField((m.focus + 1) % len(m.inputs))

	case key.Matches(msg, m.keys.PrevField):
		return m, m.focusField((m.focus + len(m.inputs) - 1) % len(m.inputs))

	case key.Matches(msg, m.keys.Next):
		if m.focus == fieldName {
			return m, m.focusField(fieldEmail)
		}
		return m.submitLogin()
	}
	return m.updateFocusedInput(msg)
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	err := m.flow.Identify(m.inputs[fieldName].Value(), m.inputs[fieldEmail].Value())
	if err != nil {
		var pe *gift.ProfileError
		if errors.As(err, &pe) {
			m.loginErr = pe
			if pe.Name != "" {
				return m, m.focusField(fieldName)
			}
			return m, m.focusField(fieldEmail)
		}
		return m, nil
	}
	m.loginErr = nil
	m.blurFields()
	m.cursor = 0
	m.notice = ""
	return m, m.enterGifts()
}

func (m Model) handleGiftsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	gifts := m.snapshot.Gifts

	switch {
	case key.Matches(msg, m.keys.Back):
		if err := m.flow.Back(); err == nil {
			m.syncReader()
			m.notice = ""
			return m, m.focusField(fieldName)
		}
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if err := m.flow.Continue(); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = ""
		m.syncReader()
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		if err := m.reader.Restart(m.ctx); err != nil {
			m.logger.Warn("reload gift list failed", "error", err)
		}
		m.snapshot = m.store.Snapshot()
		m.clampCursor()
		return m, tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.store))
	}

	if len(gifts) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(gifts)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = len(gifts) - 1
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor >= len(gifts) {
			m.clampCursor()
			return m, nil
		}
		m.flow.Toggle(gifts[m.cursor])
		m.notice = ""
	}
	return m, nil
}

func (m Model) handleSummaryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Back):
		if err := m.flow.Back(); err == nil {
			return m, m.enterGifts()
		}
	case key.Matches(msg, m.keys.Next):
		if len(m.flow.Finalized()) == 0 {
			return m, nil
		}
		m.confirming = true
		return m, tea.Batch(m.spinner.Tick, confirmCmd(m.ctx, m.flow))
	}
	return m, nil
}

func (m Model) handleThankYouKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Restart) {
		return m, nil
	}
	if err := m.flow.Restart(); err != nil {
		return m, nil
	}
	m.inputs = newLoginInputs()
	m.focus = fieldName
	m.loginErr = nil
	m.cursor = 0
	m.notice = ""
	return m, nil
}

// enterGifts opens the live list for the gift page.
func (m *Model) enterGifts() tea.Cmd {
	m.syncReader()
	m.snapshot = m.store.Snapshot()
	m.clampCursor()
	return tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.store))
}

// syncReader keeps exactly one subscription open while the gift page is
// showing and none otherwise.
func (m *Model) syncReader() {
	onGifts := m.page() == flow.StateGifts
	switch {
	case onGifts && !m.reader.Running():
		if err := m.reader.Start(m.ctx); err != nil {
			m.logger.Warn("open gift list failed", "error", err)
		}
	case !onGifts && m.reader.Running():
		m.reader.Stop()
	}
}

func (m *Model) focusField(i int) tea.Cmd {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			continue
		}
		m.inputs[j].Blur()
	}
	return m.inputs[i].Focus()
}

func (m *Model) blurFields() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) clampCursor() {
	n := len(m.snapshot.Gifts)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// handleTick processes the refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.page() == flow.StateGifts && m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return m, tea.Batch(cmds...)
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type confirmResultMsg struct {
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func confirmCmd(ctx context.Context, c *flow.Controller) tea.Cmd {
	return func() tea.Msg {
		return confirmResultMsg{err: c.Confirm(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until the visitor quits or
// ctx ends.
func Run(opts Options) error {
	m := New(opts)
	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}
	_, err := tea.NewProgram(m, progOpts...).Run()
	return err
}
