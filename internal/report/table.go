package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/ledger"
	"github.com/vk/scalegrid/internal/scale"
)

// Mode controls the table output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// StatusTable renders one row per scale. history, if non-nil, supplies the
// last recorded run of scales this process has not run.
func StatusTable(statuses []experiment.ScaleStatus, history map[scale.Scale]ledger.Run, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Scale", "State", "Param file", "Output file", "Last run", "Note"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 6, WidthMax: 60},
	})

	for _, st := range statuses {
		lastRun, note := "-", ""
		switch {
		case st.LastOutcome != nil:
			lastRun = describeOutcome(st.LastOutcome.ExitCode, st.LastOutcome.TimedOut, st.LastOutcome.ElapsedSeconds)
		case history != nil:
			if r, ok := history[st.Scale]; ok {
				lastRun = r.StartedAt.Local().Format("2006-01-02 15:04") + " " + describeOutcome(r.ExitCode, r.TimedOut, r.ElapsedSeconds)
				if r.Error != "" {
					note = r.Error
				}
			}
		}
		if st.Err != nil {
			note = st.Err.Error()
		}
		w.AppendRow(table.Row{st.Scale.String(), st.StateName, presence(st.ParamPresent), presence(st.OutputPresent), lastRun, note})
	}
	return render(w, m)
}

// CollectionTable renders the collection state of every scale.
func CollectionTable(c *experiment.Collection, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Scale", "Result", "Points", "Elapsed", "Note"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 5, WidthMax: 60},
	})

	parsed := 0
	for _, r := range c.Results {
		points, elapsed, note := "-", "-", ""
		if d := r.Dataset; d != nil {
			parsed++
			points = fmt.Sprint(d.Len())
			if d.HasElapsed() {
				elapsed = fmt.Sprintf("%.3gmin (%gs)", d.ElapsedSeconds()/60, d.ElapsedSeconds())
			} else {
				elapsed = "unknown"
			}
		}
		if r.Reason != nil {
			note = r.Reason.Error()
		}
		w.AppendRow(table.Row{r.Scale.String(), r.State.String(), points, elapsed, note})
	}
	w.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d parsed", parsed, len(c.Results)), "", "", ""})
	return render(w, m)
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func describeOutcome(exitCode int, timedOut bool, elapsed int64) string {
	switch {
	case timedOut:
		return "timed out"
	case exitCode != 0:
		return fmt.Sprintf("exit %d", exitCode)
	case elapsed >= 0:
		return fmt.Sprintf("ok (%ds)", elapsed)
	default:
		return "ok"
	}
}
