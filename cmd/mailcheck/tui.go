package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/lenlo/mailcheck/internal/check"
	"github.com/lenlo/mailcheck/internal/dedup"
	"github.com/lenlo/mailcheck/internal/mbox"
)

// choiceModel is a generalized form of the teacher's confirmModel: instead
// of a fixed yes/no, it accepts one of an arbitrary set of single-key
// choices, used for both the checker's apply/skip/apply-all/skip-all/quit
// prompt and the duplicate detector's 1/2/both/diff/neither/quit prompt.
type choiceModel struct {
	title   string
	summary string
	keys    []string // accepted key strings, in display order
	labels  []string // matching human-readable label for each key
	picked  string
}

func newChoiceModel(title, summary string, keys, labels []string) *choiceModel {
	return &choiceModel{title: title, summary: summary, keys: keys, labels: labels}
}

func (m *choiceModel) Init() tea.Cmd { return nil }

func (m *choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := msg.String()
		if s == "ctrl+c" {
			m.picked = "q"
			return m, tea.Quit
		}
		for _, k := range m.keys {
			if s == k {
				m.picked = k
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *choiceModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Render(m.title)
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2).Width(78).Render(m.summary)
	var opts []string
	for i, k := range m.keys {
		opts = append(opts, fmt.Sprintf("%s=%s", k, m.labels[i]))
	}
	desc := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("Press " + strings.Join(opts, ", "))
	return fmt.Sprintf("%s\n\n%s\n\n%s\n", title, box, desc)
}

// runChoiceTUI runs a choiceModel and returns the picked key, falling back
// to a plain stdin prompt when stdout isn't a terminal (e.g. piped output
// in scripted/test use), mirroring the teacher's term.IsTerminal gate
// around its password prompts.
func runChoiceTUI(title, summary string, keys, labels []string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return promptPlain(title, summary, keys, labels)
	}
	m := newChoiceModel(title, summary, keys, labels)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return "", err
	}
	if m.picked == "" {
		return "q", nil
	}
	return m.picked, nil
}

func promptPlain(title, summary string, keys, labels []string) (string, error) {
	var opts []string
	for i, k := range keys {
		opts = append(opts, fmt.Sprintf("%s=%s", k, labels[i]))
	}
	fmt.Fprintf(os.Stderr, "%s\n%s\n[%s] ", title, summary, strings.Join(opts, ", "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "q", nil
	}
	line = strings.TrimSpace(line)
	for _, k := range keys {
		if strings.EqualFold(line, k) {
			return k, nil
		}
	}
	return "q", nil
}

func interactiveCheckPrompt(o *rootOptions) check.PromptFunc {
	keys := []string{"y", "n", "a", "s", "q"}
	labels := []string{"apply", "skip", "apply to all remaining", "skip all remaining", "quit"}
	return func(rule check.Rule, m *mbox.Message, detail string) check.Decision {
		title := fmt.Sprintf("Repair %s on message %d?", rule, m.Number)
		switch pick, _ := runChoiceTUI(title, detail, keys, labels); pick {
		case "y":
			return check.DecisionApply
		case "n":
			return check.DecisionSkip
		case "a":
			return check.DecisionApplyAll
		case "s":
			return check.DecisionSkipAll
		default:
			return check.DecisionQuit
		}
	}
}

func interactiveDedupPrompt(o *rootOptions) dedup.PromptFunc {
	keys := []string{"1", "2", "b", "d", "n", "q"}
	labels := []string{"keep first", "keep second", "keep both", "show diff", "neither (skip)", "quit"}
	return func(p dedup.Pair) dedup.Decision {
		title := fmt.Sprintf("Possible duplicate: messages %d and %d", p.A.Number, p.B.Number)
		summary := fmt.Sprintf("Differing fields: %s", strings.Join(p.DifferingFields, ", "))
		switch pick, _ := runChoiceTUI(title, summary, keys, labels); pick {
		case "1":
			return dedup.DecisionKeepFirst
		case "2":
			return dedup.DecisionKeepSecond
		case "b":
			return dedup.DecisionKeepBoth
		case "d":
			return dedup.DecisionShowDiff
		case "n":
			return dedup.DecisionKeepBoth
		default:
			return dedup.DecisionQuit
		}
	}
}
