package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"advisor/internal/domain"
	"advisor/internal/service"
)

// AdvisorPort is the TUI-facing subset of the advisor service.
type AdvisorPort interface {
	Ask(ctx context.Context, req service.Request) (service.Response, error)
	Categories() []domain.Category
}

type answerMsg struct {
	resp service.Response
	err  error
}

// Model is the Bubble Tea model for the console application.
type Model struct {
	service    AdvisorPort
	input      textinput.Model
	viewport   viewport.Model
	categories []domain.Category
	catIdx     int // -1 means all categories
	status     string
	waiting    bool
	ready      bool
}

// New creates a new TUI model instance.
func New(svc AdvisorPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:    svc,
		input:      ti,
		viewport:   vp,
		categories: svc.Categories(),
		catIdx:     -1,
		status:     "Ready. Tab cycles categories.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + category line, status, query box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-rh)
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		if msg.resp.Refused {
			m.status = "No evidence found."
		} else {
			m.status = fmt.Sprintf("Answered by %s from %d passages", msg.resp.Structured.Provider, len(msg.resp.Evidence))
		}
		m.viewport.SetContent(renderResponse(msg.resp))
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "tab":
			if len(m.categories) > 0 {
				m.catIdx++
				if m.catIdx >= len(m.categories) {
					m.catIdx = -1
				}
				return m, nil
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask issues the request off the update loop so the UI stays responsive.
func (m Model) ask(query string) tea.Cmd {
	req := service.Request{Query: query}
	if m.catIdx >= 0 && m.catIdx < len(m.categories) {
		req.CategoryID = m.categories[m.catIdx].ID
	}
	svc := m.service
	return func() tea.Msg {
		resp, err := svc.Ask(context.Background(), req)
		return answerMsg{resp: resp, err: err}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Advisor")
	catLine := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Category: " + m.categoryLabel())
	answer := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + catLine + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) categoryLabel() string {
	if m.catIdx < 0 || m.catIdx >= len(m.categories) {
		return "all"
	}
	return m.categories[m.catIdx].Name
}

// renderResponse lays out the structured answer: summary, then each question
// with its answer and cited evidence. A refusal renders the raw message.
func renderResponse(resp service.Response) string {
	s := resp.Structured
	if resp.Refused || (s.Summary == "" && len(s.Questions) == 0) {
		return s.Raw
	}
	var b strings.Builder
	if s.Summary != "" {
		b.WriteString(sectionStyle.Render("SUMMARY"))
		b.WriteString("\n")
		b.WriteString(s.Summary)
		b.WriteString("\n\n")
	}
	for _, q := range s.Questions {
		title := fmt.Sprintf("QUESTION %d", q.Number)
		if q.Title != "" {
			title += ": " + q.Title
		}
		b.WriteString(sectionStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(q.Answer)
		b.WriteString("\n")
		for _, c := range q.Evidence {
			b.WriteString(quoteStyle.Render(fmt.Sprintf("  %q", c.Quote)))
			b.WriteString("\n")
			if c.Source != "" {
				b.WriteString("    — " + c.Source + "\n")
			}
			if c.Confidence != "" {
				b.WriteString("    Confidence: " + c.Confidence + "\n")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sectionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	quoteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
