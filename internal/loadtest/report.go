package loadtest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const undefinedPercentile = "undefined (no successful submissions)"

// Report renders a PercentileSummary as a boxed block for a terminal. Colors
// are dropped automatically when the writer is not a TTY.
type Report struct {
	out   io.Writer
	box   lipgloss.Style
	title lipgloss.Style
	label lipgloss.Style
	bad   lipgloss.Style
}

// NewReport returns a Report writing to w.
func NewReport(w io.Writer) *Report {
	r := lipgloss.NewRenderer(w)
	return &Report{
		out: w,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label: r.NewStyle().Bold(true),
		bad:   r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// Render writes the summary block. Failed is always printed, even when zero.
func (r *Report) Render(s PercentileSummary) error {
	var b strings.Builder

	b.WriteString(r.title.Render("storm summary"))
	b.WriteString("\n")
	r.line(&b, "Sent", fmt.Sprintf("%d", s.Total))
	r.line(&b, "Succeeded", fmt.Sprintf("%d", s.SampleCount))

	failed := fmt.Sprintf("%d", s.FailureCount)
	if s.FailureCount > 0 {
		failed = r.bad.Render(failed)
	}
	r.line(&b, "Failed", failed)

	kinds := make([]string, 0, len(s.FailuresByKind))
	for kind := range s.FailuresByKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		b.WriteString(fmt.Sprintf("  %s: %d\n", kind, s.FailuresByKind[FailureKind(kind)]))
	}

	if p := s.Percentiles; p != nil {
		r.line(&b, "p75", fmt.Sprintf("%d ms", p.P75))
		r.line(&b, "p95", fmt.Sprintf("%d ms", p.P95))
		r.line(&b, "p99", fmt.Sprintf("%d ms", p.P99))
		r.line(&b, "min/mean/max", fmt.Sprintf("%d / %d / %d ms", p.Min, p.Mean, p.Max))
	} else {
		r.line(&b, "p75", undefinedPercentile)
		r.line(&b, "p95", undefinedPercentile)
		r.line(&b, "p99", undefinedPercentile)
	}

	_, err := fmt.Fprintln(r.out, r.box.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func (r *Report) line(b *strings.Builder, label, value string) {
	b.WriteString(r.label.Render(fmt.Sprintf("%-13s", label+":")))
	b.WriteString(value)
	b.WriteString("\n")
}
