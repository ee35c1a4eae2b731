// Package tui implements the interactive terminal chat.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the assistant.
type ChatPort interface {
	Chat(ctx context.Context, sessionID, query string) (domain.Outcome, error)
}

type exchange struct {
	query     string
	answer    string
	citations []domain.Citation
	failed    bool
}

type answerMsg struct {
	query   string
	outcome domain.Outcome
	err     error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	chat      ChatPort
	sessionID string
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	history   []exchange
	header    string
	status    string
	waiting   bool
	ready     bool
}

// New creates a chat model for one session. timeout bounds each question.
func New(chat ChatPort, sessionID, header string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		chat:      chat,
		sessionID: sessionID,
		timeout:   timeout,
		input:     ti,
		viewport:  viewport.New(0, 0),
		header:    header,
		status:    "Ready. Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		// header + subtitle + status + query line
		reserved := 3 + qh + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.waiting = false
		ex := exchange{query: msg.query}
		switch {
		case msg.err != nil:
			ex.answer, ex.failed = "Error: "+msg.err.Error(), true
			m.status = "Request rejected."
		default:
			ex.answer = msg.outcome.Text()
			if s, ok := msg.outcome.(domain.Success); ok {
				ex.citations = s.Citations
				m.status = fmt.Sprintf("Answered with %d citations.", len(s.Citations))
			} else {
				ex.failed = true
				m.status = "The assistant is degraded; try again shortly."
			}
		}
		m.history = append(m.history, ex)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.waiting = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		out, err := m.chat.Chat(ctx, m.sessionID, query)
		return answerMsg{query: query, outcome: out, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("ragchat")
	sub := subtleStyle.Render(m.header)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + sub + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	var sb strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(userStyle.Render("You: " + ex.query))
		sb.WriteString("\n")
		if ex.failed {
			sb.WriteString(errorStyle.Render(ex.answer))
			continue
		}
		// only the latest answer gets the highlight
		if i == len(m.history)-1 {
			sb.WriteString(highlightBestSentence(ex.answer, ex.query))
		} else {
			sb.WriteString(ex.answer)
		}
		if len(ex.citations) > 0 {
			refs := make([]string, len(ex.citations))
			for j, c := range ex.citations {
				refs[j] = fmt.Sprintf("%s #%d", c.Source, c.Chunk)
			}
			sb.WriteString("\n" + subtleStyle.Render("Sources: "+strings.Join(refs, ", ")))
		}
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	subtleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`[^.!?。\n]+[.!?。]*`)
)

// highlightBestSentence emphasises, in place, the sentence sharing the most
// words with the query. Everything outside that sentence is left untouched.
func highlightBestSentence(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	var best []int
	bestScore := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if score := tokenOverlapScore(qTokens, text[loc[0]:loc[1]]); score > bestScore {
			best, bestScore = loc, score
		}
	}
	if best == nil {
		return text
	}
	span := text[best[0]:best[1]]
	trimmed := strings.TrimSpace(span)
	lead := strings.Index(span, trimmed)
	return text[:best[0]] + span[:lead] + highlightStyle.Render(trimmed) + span[lead+len(trimmed):] + text[best[1]:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
