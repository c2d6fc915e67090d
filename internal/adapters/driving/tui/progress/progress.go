// Package progress renders the stages of an index run as a bubbletea
// program: a spinner on the active stage and a bar for its completion.
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/chromasync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/chromasync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/chromasync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// stages lists the pipeline stages in display order.
var stages = []domain.Stage{
	domain.StageExtract,
	domain.StageEmbed,
	domain.StageStore,
	domain.StageSync,
}

var stageTitles = map[domain.Stage]string{
	domain.StageExtract: "Extract & chunk",
	domain.StageEmbed:   "Embed",
	domain.StageStore:   "Write local",
	domain.StageSync:    "Sync remote",
}

const maxBarWidth = 60

type stageState struct {
	done, total int
	seen        bool
}

// Model is the bubbletea model of the progress view.
type Model struct {
	title   string
	styles  *styles.Styles
	keys    *keymap.KeyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model

	state   map[domain.Stage]*stageState
	current domain.Stage
	message string

	details   bool
	cancel    context.CancelFunc
	cancelled bool
	finished  bool
	started   time.Time
	elapsed   time.Duration

	report *domain.RunReport
	err    error
}

// New creates the model. cancel is called when the user quits.
func New(title string, cancel context.CancelFunc) *Model {
	state := make(map[domain.Stage]*stageState, len(stages))
	for _, s := range stages {
		state[s] = &stageState{}
	}
	return &Model{
		title:   title,
		styles:  styles.DefaultStyles(),
		keys:    keymap.DefaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		state:   state,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses, window resizes and pipeline messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case keymap.Matches(msg.String(), m.keys.Quit):
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
			m.message = "cancelling..."
		case keymap.Matches(msg.String(), m.keys.Details):
			m.details = !m.details
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		m.help.Width = msg.Width
		return m, nil

	case messages.Progress:
		m.apply(msg.Event)
		return m, nil

	case messages.RunFinished:
		m.finished = true
		m.report = msg.Report
		m.err = msg.Err
		m.elapsed = time.Since(m.started)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(e domain.ProgressEvent) {
	if e.Stage == domain.StageDone {
		m.current = domain.StageDone
		return
	}
	st, ok := m.state[e.Stage]
	if !ok {
		return
	}
	st.seen = true
	st.done = e.Done
	if e.Total > 0 {
		st.total = e.Total
	}
	m.current = e.Stage
	if e.Message != "" {
		m.message = e.Message
	}
}

// percent is the completion of the active stage, 0 when its size is unknown.
func (m *Model) percent() float64 {
	st, ok := m.state[m.current]
	if !ok || st.total == 0 {
		return 0
	}
	return min(float64(st.done)/float64(st.total), 1)
}

// View renders the stage list, bar and key hints.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n\n")

	for _, s := range stages {
		st := m.state[s]
		marker := "  "
		style := m.styles.Muted
		switch {
		case s == m.current && !m.finished:
			marker = m.spinner.View()
			style = m.styles.Normal
		case st.seen || m.after(s):
			marker = m.styles.Success.Render("✓ ")
			style = m.styles.Normal
		}
		line := marker + style.Render(stageTitles[s])
		if m.details && st.seen {
			line += m.styles.Muted.Render(counter(st))
		}
		b.WriteString(line + "\n")
	}

	if !m.finished {
		b.WriteString("\n" + m.bar.ViewAs(m.percent()) + "\n")
		if m.message != "" {
			b.WriteString(m.styles.Muted.Render(truncate(m.message, maxBarWidth)) + "\n")
		}
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()) + "\n")
	}
	return b.String()
}

// after reports whether the run has moved past stage s.
func (m *Model) after(s domain.Stage) bool {
	if m.current == domain.StageDone {
		return true
	}
	for _, x := range stages {
		if x == m.current {
			return false
		}
		if x == s {
			return m.current != ""
		}
	}
	return false
}

func counter(st *stageState) string {
	if st.total == 0 {
		return fmt.Sprintf("  %d", st.done)
	}
	return fmt.Sprintf("  %d/%d", st.done, st.total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}

// Report returns the run report once the run has finished.
func (m *Model) Report() (*domain.RunReport, error) {
	return m.report, m.err
}

// Cancelled reports whether the user asked to stop the run.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// RunFunc is a pipeline invocation that reports to observer.
type RunFunc func(ctx context.Context, observer domain.ProgressObserver) (*domain.RunReport, error)

// Run executes fn while rendering its progress, and returns fn's result.
func Run(ctx context.Context, title string, fn RunFunc, opts ...tea.ProgramOption) (*domain.RunReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := New(title, cancel)
	program := tea.NewProgram(model, opts...)
	observer := domain.ProgressFunc(func(e domain.ProgressEvent) {
		program.Send(messages.Progress{Event: e})
	})

	result := make(chan messages.RunFinished, 1)
	go func() {
		report, err := fn(ctx, observer)
		msg := messages.RunFinished{Report: report, Err: err}
		result <- msg
		program.Send(msg)
	}()

	if _, err := program.Run(); err != nil {
		logger.Warn("progress view stopped: %v", err)
	}
	msg := <-result
	return msg.Report, msg.Err
}
