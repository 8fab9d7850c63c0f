// Package ui renders search responses for terminal output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/paperdex/paperdex/internal/search"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// Renderer formats search responses. Styling is applied only when the output
// is a terminal; piped output stays plain.
type Renderer struct {
	styled bool
}

// NewRenderer builds a renderer for the given output.
func NewRenderer(out io.Writer) *Renderer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{styled: styled}
}

// Response renders a full search response.
func (r *Renderer) Response(resp *search.Response) string {
	var b strings.Builder

	if !resp.Success {
		b.WriteString(r.style(errorStyle, "search failed: "+resp.Error))
		b.WriteString("\n")
		return b.String()
	}

	if resp.Total == 0 {
		b.WriteString(r.style(dimStyle, fmt.Sprintf("no results for %q", resp.Query)))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n\n", r.style(dimStyle,
		fmt.Sprintf("%d result(s) for %q", resp.Total, resp.Query)))

	for i, res := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.style(titleStyle, res.FileName))
		fmt.Fprintf(&b, "   %s\n", r.style(dimStyle,
			fmt.Sprintf("%s / %s / %s", res.FolderName, res.DocType, res.CreatedAt)))
		for _, loc := range res.Locations {
			fmt.Fprintf(&b, "   - %s: %s\n", loc.Description, r.snippet(loc.Snippet))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// snippet converts highlight markers into terminal styling, or strips them
// for plain output.
func (r *Renderer) snippet(s string) string {
	if !r.styled {
		s = strings.ReplaceAll(s, "<mark>", "")
		return strings.ReplaceAll(s, "</mark>", "")
	}
	out := s
	for {
		start := strings.Index(out, "<mark>")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "</mark>")
		if end < 0 {
			break
		}
		end += start
		term := out[start+len("<mark>") : end]
		out = out[:start] + highlightStyle.Render(term) + out[end+len("</mark>"):]
	}
	return out
}

func (r *Renderer) style(st lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return st.Render(s)
}
