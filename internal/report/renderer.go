package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by ForFormat.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatMarkdown, FormatJSON, FormatYAML}
}

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// ForFormat returns the renderer for name. On a terminal markdown is
// rendered with glamour.
func ForFormat(name string, terminal bool) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatText:
		return &TextRenderer{}, nil
	case FormatMarkdown, "md":
		if terminal {
			return &MarkdownRenderer{Glamour: true}, nil
		}
		return &MarkdownRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatYAML, "yml":
		return &YAMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (use one of %s)", name, strings.Join(Formats(), ", "))
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(rep *Report) ([]byte, error) {
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// YAMLRenderer renders a Report as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(rep *Report) ([]byte, error) {
	return yaml.Marshal(rep)
}

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

// TextRenderer renders one line per issue, styled with lipgloss.
type TextRenderer struct{}

func (r *TextRenderer) Render(rep *Report) ([]byte, error) {
	var sb strings.Builder
	for _, e := range rep.Entries {
		switch e.Status {
		case StatusLogged:
			line := fmt.Sprintf("%s Added worklog of %s to issue %s", okStyle.Render("✓"), rep.Duration, e.IssueKey)
			if e.WorklogID != "" {
				line += dimStyle.Render(" (worklog " + e.WorklogID + ")")
			}
			sb.WriteString(line + "\n")
		case StatusSkipped:
			fmt.Fprintf(&sb, "%s %s not logged: %s\n", skipStyle.Render("-"), e.IssueKey, e.Error)
		default:
			fmt.Fprintf(&sb, "%s Failed to log time on %s: %s\n", failStyle.Render("✗"), e.IssueKey, e.Error)
		}
	}
	total := len(rep.Entries)
	summary := fmt.Sprintf("%d of %d worklog(s) added", rep.Logged, total)
	if rep.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", rep.Failed)
	}
	sb.WriteString(headerStyle.Render(summary) + "\n")
	return []byte(sb.String()), nil
}

// MarkdownRenderer renders a Report as Markdown, optionally styled for the
// terminal with glamour.
type MarkdownRenderer struct {
	Glamour bool
	Style   string // glamour standard style; empty picks one from the terminal
	Width   int
}

func (r *MarkdownRenderer) Render(rep *Report) ([]byte, error) {
	var sb strings.Builder

	title := "Worklog"
	if rep.Server != "" {
		title += " on " + rep.Server
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	fmt.Fprintf(&sb, "- Time spent: %s\n", rep.Duration)
	if !rep.Started.IsZero() {
		fmt.Fprintf(&sb, "- Started: %s\n", rep.Started.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&sb, "- Logged: %d, failed: %d\n\n", rep.Logged, rep.Failed)

	if rep.Comment != "" {
		sb.WriteString("## Comment\n\n")
		for _, line := range strings.Split(rep.Comment, "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Issues\n\n")
	if len(rep.Entries) == 0 {
		sb.WriteString("_No issues._\n")
	} else {
		sb.WriteString("| Issue | Summary | Result |\n")
		sb.WriteString("|-------|---------|--------|\n")
		for _, e := range rep.Entries {
			result := e.Status
			if e.WorklogID != "" {
				result += " (" + e.WorklogID + ")"
			}
			if e.Error != "" {
				result += ": " + e.Error
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", e.IssueKey, escapeCell(e.Summary), escapeCell(result))
		}
	}

	md := sb.String()
	if !r.Glamour {
		return []byte(md), nil
	}
	return r.style(md)
}

func (r *MarkdownRenderer) style(md string) ([]byte, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(r.width())}
	if r.Style != "" {
		opts = append(opts, glamour.WithStandardStyle(r.Style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := tr.Render(md)
	if err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return []byte(out), nil
}

func (r *MarkdownRenderer) width() int {
	if r.Width > 0 {
		return r.Width
	}
	return 100
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
