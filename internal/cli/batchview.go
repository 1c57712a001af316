package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/pipeline"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// =============================================================================
// Batch Runner
// =============================================================================

// runBatch runs the batch, showing live per-page progress when attached to
// a terminal. At debug level the plain log output is kept instead.
func (c *CLI) runBatch(ctx context.Context, runner *pipeline.Runner, inputs []string, opts pipeline.Options) (*pipeline.BatchResult, error) {
	if !c.interactive() {
		return runner.Batch(ctx, inputs, opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBatchModel(len(inputs), cancel), tea.WithOutput(os.Stderr))
	runner.Logger = newLogger(programWriter{p}, c.Logger.GetLevel())
	observability.SetPipelineHooks(batchHooks{send: p.Send})
	defer observability.SetPipelineHooks(observability.NoopPipelineHooks{})

	viewDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		viewDone <- err
	}()

	batch, err := runner.Batch(ctx, inputs, opts)
	p.Send(batchDoneMsg{})
	if viewErr := <-viewDone; viewErr != nil {
		c.Logger.Debug("progress view failed", "err", viewErr)
	}
	return batch, err
}

func (c *CLI) interactive() bool {
	return c.Logger.GetLevel() > log.DebugLevel &&
		isatty.IsTerminal(os.Stdin.Fd()) &&
		isatty.IsTerminal(os.Stderr.Fd())
}

// programWriter prints log lines above the progress view.
type programWriter struct{ p *tea.Program }

func (w programWriter) Write(b []byte) (int, error) {
	w.p.Send(tea.Println(strings.TrimRight(string(b), "\n"))())
	return len(b), nil
}

// batchHooks forwards page events to the progress view.
type batchHooks struct {
	observability.NoopPipelineHooks
	send func(tea.Msg)
}

func (h batchHooks) OnPageStart(_ context.Context, domain string) {
	h.send(pageStartMsg{domain: domain})
}

func (h batchHooks) OnPageComplete(_ context.Context, domain string, d time.Duration, err error) {
	h.send(pageDoneMsg{domain: domain, duration: d, err: err})
}

// =============================================================================
// Progress Model
// =============================================================================

type pageState int

const (
	pageRunning pageState = iota
	pageDone
	pageFailed
)

type pageRow struct {
	domain   string
	state    pageState
	duration time.Duration
	err      error
}

type (
	pageStartMsg struct{ domain string }
	pageDoneMsg  struct {
		domain   string
		duration time.Duration
		err      error
	}
	batchDoneMsg struct{}
	tickMsg      time.Time
)

// batchModel is the bubbletea model listing the pages of a running batch.
type batchModel struct {
	total       int
	rows        []pageRow
	frame       int
	finished    bool
	interrupted bool
	onInterrupt func()
}

func newBatchModel(total int, onInterrupt func()) batchModel {
	return batchModel{total: total, onInterrupt: onInterrupt}
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m batchModel) Init() tea.Cmd {
	return tick()
}

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}
	case pageStartMsg:
		m.rows = append(m.rows, pageRow{domain: msg.domain, state: pageRunning})
	case pageDoneMsg:
		state := pageDone
		if msg.err != nil {
			state = pageFailed
		}
		i := m.running(msg.domain)
		if i < 0 {
			m.rows = append(m.rows, pageRow{domain: msg.domain})
			i = len(m.rows) - 1
		}
		m.rows[i].state = state
		m.rows[i].duration = msg.duration
		m.rows[i].err = msg.err
	case batchDoneMsg:
		m.finished = true
		return m, tea.Quit
	case tickMsg:
		m.frame++
		return m, tick()
	}
	return m, nil
}

// running returns the index of the last running row for domain, or -1.
func (m batchModel) running(domain string) int {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].domain == domain && m.rows[i].state == pageRunning {
			return i
		}
	}
	return -1
}

func (m batchModel) completed() int {
	n := 0
	for _, r := range m.rows {
		if r.state != pageRunning {
			n++
		}
	}
	return n
}

func (m batchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Composing mockups"))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  [%d/%d]", m.completed(), m.total)))
	b.WriteString("\n")

	width := 0
	for _, r := range m.rows {
		width = max(width, lipgloss.Width(r.domain))
	}
	name := lipgloss.NewStyle().Width(width + 2)

	for _, r := range m.rows {
		switch r.state {
		case pageRunning:
			b.WriteString(styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)]))
			b.WriteString(" " + name.Render(r.domain) + StyleDim.Render("working"))
		case pageDone:
			b.WriteString(styleIconSuccess.Render(iconSuccess))
			b.WriteString(" " + name.Render(r.domain) + StyleDim.Render(r.duration.Round(time.Millisecond).String()))
		case pageFailed:
			code := string(errors.GetCode(r.err))
			if code == "" {
				code = "failed"
			}
			b.WriteString(styleIconError.Render(iconError))
			b.WriteString(" " + name.Render(r.domain) + StyleWarning.Render(code))
		}
		b.WriteString("\n")
	}

	if m.interrupted {
		b.WriteString(StyleDim.Render("interrupted, finishing current page") + "\n")
	}
	return b.String()
}
