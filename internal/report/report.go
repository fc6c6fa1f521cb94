// Package report renders sessions and replays for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/store"
)

var (
	colorAccent = lipgloss.Color("#00CC99")
	colorDim    = lipgloss.Color("#5F8787")
	colorWarn   = lipgloss.Color("#FFAA00")

	styleTitle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorDim).
			Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorDim)

	styleOpen = lipgloss.NewStyle().
			Foreground(colorWarn)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

// Sessions writes a table of recorded sessions.
func Sessions(w io.Writer, sessions []*store.Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, styleMuted.Render("No recorded sessions."))
		return err
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render(fmt.Sprintf("%-36s  %-19s  %7s  %9s", "ID", "NAME", "FRAMES", "DURATION")))
	b.WriteByte('\n')
	for _, s := range sessions {
		duration := styleOpen.Render(fmt.Sprintf("%9s", "open"))
		if s.EndedAt != nil {
			duration = fmt.Sprintf("%9s", s.Duration().Round(time.Second))
		}
		fmt.Fprintf(&b, "%-36s  %-19s  %7d  %s\n", s.ID, s.Name, s.Frames, duration)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Replay writes a summary box followed by every nth replay step. every <= 0
// prints the summary only.
func Replay(w io.Writer, sess *store.Session, steps []app.ReplayStep, every int) error {
	sum := app.Summarize(steps)

	var b strings.Builder
	b.WriteString(styleTitle.Render("Replay " + sess.Name))
	b.WriteByte('\n')
	b.WriteString(styleBox.Render(summaryLines(sum)))
	b.WriteByte('\n')

	if every > 0 && len(steps) > 0 {
		b.WriteString(styleHeader.Render(fmt.Sprintf("%9s  %-8s  %9s  %6s  %-9s", "OFFSET", "LABEL", "ROTATION", "ZOOM", "MODE")))
		b.WriteByte('\n')
		for i, st := range steps {
			if i%every != 0 && i != len(steps)-1 {
				continue
			}
			fmt.Fprintf(&b, "%9s  %-8s  %9.3f  %6.2f  %-9s\n",
				st.Offset.Round(time.Millisecond), st.Label,
				st.Orientation.RotationY, st.Orientation.ZoomLevel, st.Orientation.Mode)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func summaryLines(sum app.ReplaySummary) string {
	labels := make([]string, 0, len(sum.Labels))
	for l := range sum.Labels {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if sum.Labels[labels[i]] != sum.Labels[labels[j]] {
			return sum.Labels[labels[i]] > sum.Labels[labels[j]]
		}
		return labels[i] < labels[j]
	})

	counts := make([]string, len(labels))
	for i, l := range labels {
		counts[i] = fmt.Sprintf("%s %d", l, sum.Labels[l])
	}

	lines := []string{
		fmt.Sprintf("frames    %d (%d with a hand)", sum.Frames, sum.HandFrames),
		fmt.Sprintf("duration  %s", sum.Duration.Round(time.Millisecond)),
		fmt.Sprintf("labels    %s", strings.Join(counts, ", ")),
		fmt.Sprintf("zoom      %.2f .. %.2f", sum.MinZoom, sum.MaxZoom),
		fmt.Sprintf("final     rotation %.3f, %s", sum.Final.RotationY, sum.Final.Mode),
	}
	return strings.Join(lines, "\n")
}
