package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"postrag/internal/domain"
)

// PipelinePort is the TUI-facing subset of the pipeline.
type PipelinePort interface {
	Translate(ctx context.Context, post string) domain.TranslateResult
	Classify(ctx context.Context, post string) domain.ClassifyResult
	Reply(ctx context.Context, post string) (string, error)
}

// RetrieverPort exposes scored glossary candidates.
type RetrieverPort interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

var modes = []domain.Task{domain.TaskTranslate, domain.TaskClassify, domain.TaskReply}

// resultMsg carries the outcome of one asynchronous request.
type resultMsg struct {
	post       string
	task       domain.Task
	body       string
	candidates []domain.Candidate
	err        error
	elapsed    time.Duration
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	pipeline  PipelinePort
	retriever RetrieverPort
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	mode      int
	last      *resultMsg
	status    string
	subtitle  string
	busy      bool
	ready     bool
	timeout   time.Duration
}

// New creates a new TUI model instance. subtitle is shown under the header.
func New(pipeline PipelinePort, retriever RetrieverPort, subtitle string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Paste a post and press Enter (Tab switches task)"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		pipeline:  pipeline,
		retriever: retriever,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		subtitle:  subtitle,
		status:    "Ready.",
		timeout:   3 * time.Minute,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + subtitle, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case resultMsg:
		m.busy = false
		m.last = &msg
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("%s done in %s", msg.task, msg.elapsed.Round(time.Millisecond))
		}
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			post := strings.TrimSpace(m.input.Value())
			if post == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Running %s...", m.task())
			return m, tea.Batch(m.spinner.Tick, m.run(m.task(), post))
		case "tab":
			m.mode = (m.mode + 1) % len(modes)
			m.status = fmt.Sprintf("Task: %s", m.task())
			return m, nil
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) task() domain.Task { return modes[m.mode] }

// run performs the request off the UI loop.
func (m Model) run(task domain.Task, post string) tea.Cmd {
	pipeline, retriever, timeout := m.pipeline, m.retriever, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		res := resultMsg{post: post, task: task}
		if retriever != nil {
			res.candidates, _ = retriever.Retrieve(ctx, post, 0)
		}
		switch task {
		case domain.TaskTranslate:
			r := pipeline.Translate(ctx, post)
			res.body = renderTranslation(r)
		case domain.TaskClassify:
			r := pipeline.Classify(ctx, post)
			res.body = fmt.Sprintf("category:    %s\nsubcategory: %s\nreason:      %s", r.Category, r.Subcategory, r.Reason)
		case domain.TaskReply:
			res.body, res.err = pipeline.Reply(ctx, post)
		}
		res.elapsed = time.Since(start)
		return res
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("postrag") + "  " +
		modeStyle.Render("["+string(m.task())+"]")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.last == nil {
		return "No results yet."
	}
	var b strings.Builder
	b.WriteString(highlightTerms(m.last.post, m.last.candidates))
	b.WriteString("\n\n")
	if m.last.err == nil {
		b.WriteString(m.last.body)
	}
	if len(m.last.candidates) > 0 {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Underline(true).Render("Glossary context"))
		for _, c := range m.last.candidates {
			b.WriteString(fmt.Sprintf("\n%.3f  %s", c.Score, c.Entry.ContextLine()))
		}
	}
	return b.String()
}

func renderTranslation(r domain.TranslateResult) string {
	s := r.Translated + "\n\ncategory: " + r.Category
	if r.Start != nil || r.End != nil {
		s += "\nwindow:   " + formatTime(r.Start) + " – " + formatTime(r.End)
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return t.Format("2006-01-02 15:04")
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	modeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// highlightTerms marks glossary terms from candidates that occur in post.
func highlightTerms(post string, candidates []domain.Candidate) string {
	out := post
	for _, c := range candidates {
		term := c.Entry.Term
		if term == "" || !strings.Contains(out, term) {
			continue
		}
		out = strings.ReplaceAll(out, term, highlightStyle.Render(term))
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
