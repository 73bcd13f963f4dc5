package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/KaramelBytes/datatidy-cli/internal/cleaning"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

// maxUnresolvedListed caps the unresolved cells listed in text and markdown
// reports. JSON carries all of them.
const maxUnresolvedListed = 10

// Render writes m in format f.
func Render(w io.Writer, f Format, m *Manifest) error {
	switch f {
	case FormatMarkdown:
		return RenderMarkdown(w, m)
	case FormatJSON:
		return RenderJSON(w, m)
	default:
		return RenderText(w, m)
	}
}

// RenderJSON writes the manifest as indented JSON.
func RenderJSON(w io.Writer, m *Manifest) error {
	b, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return errors.Wrap(err, "write json report")
}

// RenderText writes a terminal report with pterm tables and banners.
func RenderText(w io.Writer, m *Manifest) error {
	var b strings.Builder
	for _, warn := range m.Warnings {
		b.WriteString(pterm.Warning.Sprintln(warn))
	}
	b.WriteString(pterm.DefaultSection.Sprint("Cleaning report: " + m.Source))
	b.WriteString("\n")

	s := m.Summary
	metrics := pterm.TableData{
		{"Metric", "Before", "After"},
		{"Rows", strconv.Itoa(s.RowsBefore), strconv.Itoa(s.RowsAfter)},
		{"Columns", strconv.Itoa(s.ColumnsBefore), strconv.Itoa(s.ColumnsAfter)},
		{"Missing cells", strconv.Itoa(s.MissingBefore), strconv.Itoa(s.MissingAfter)},
	}
	if err := writeTable(&b, metrics); err != nil {
		return err
	}
	fmt.Fprintf(&b, "Rows removed: %d (sparse %d, duplicates %d)  Cells imputed: %d\n",
		s.RowsRemoved(), s.RowsDropped, s.DuplicatesRemoved, s.Imputed)

	if rep := m.Cleaning; rep != nil {
		if len(rep.Columns) > 0 {
			b.WriteString(pterm.DefaultSection.WithLevel(2).Sprint("Columns"))
			b.WriteString("\n")
			if err := writeTable(&b, columnTable(rep)); err != nil {
				return err
			}
		}
		if len(rep.Operations) > 0 {
			b.WriteString(pterm.DefaultSection.WithLevel(2).Sprint("Operations"))
			b.WriteString("\n")
			for i, op := range rep.Operations {
				fmt.Fprintf(&b, "%2d. %s\n", i+1, describeOp(op))
			}
		}
		if n := len(rep.Unresolved); n > 0 {
			b.WriteString(pterm.Warning.Sprintf("%d cells remain missing\n", n))
			for _, c := range firstUnresolved(rep) {
				fmt.Fprintf(&b, "  row %d, %s: %s\n", c.Row+1, c.Column, c.Reason)
			}
			if n > maxUnresolvedListed {
				fmt.Fprintf(&b, "  ... and %d more\n", n-maxUnresolvedListed)
			}
		}
	}

	if err := writeAssessmentText(&b, m.Assessment); err != nil {
		return err
	}
	if m.Output != "" {
		b.WriteString(pterm.Success.Sprintln("Cleaned data written to " + m.Output))
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write text report")
}

// RenderMarkdown writes the report as a markdown document.
func RenderMarkdown(w io.Writer, m *Manifest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cleaning report: %s\n\n", m.Source)
	if m.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", m.RunID)
		if d := m.Duration(); d > 0 {
			fmt.Fprintf(&b, " took %s", d.Round(time.Millisecond))
		}
		b.WriteString(".\n\n")
	}
	if len(m.Warnings) > 0 {
		for _, warn := range m.Warnings {
			fmt.Fprintf(&b, "> **Warning:** %s\n", warn)
		}
		b.WriteString("\n")
	}

	s := m.Summary
	b.WriteString("## Summary\n\n| Metric | Before | After |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| Rows | %d | %d |\n", s.RowsBefore, s.RowsAfter)
	fmt.Fprintf(&b, "| Columns | %d | %d |\n", s.ColumnsBefore, s.ColumnsAfter)
	fmt.Fprintf(&b, "| Missing cells | %d | %d |\n\n", s.MissingBefore, s.MissingAfter)
	fmt.Fprintf(&b, "Rows removed: %d (sparse %d, duplicates %d). Cells imputed: %d.\n\n",
		s.RowsRemoved(), s.RowsDropped, s.DuplicatesRemoved, s.Imputed)

	if rep := m.Cleaning; rep != nil {
		if len(rep.Columns) > 0 {
			b.WriteString("## Columns\n\n")
			rows := columnTable(rep)
			fmt.Fprintf(&b, "| %s |\n|---|---|---:|---:|---:|\n", strings.Join(rows[0], " | "))
			for _, r := range rows[1:] {
				fmt.Fprintf(&b, "| %s |\n", strings.Join(escapeCells(r), " | "))
			}
			b.WriteString("\n")
		}
		if len(rep.Operations) > 0 {
			b.WriteString("## Operations\n\n")
			for i, op := range rep.Operations {
				fmt.Fprintf(&b, "%d. %s\n", i+1, describeOp(op))
			}
			b.WriteString("\n")
		}
		if n := len(rep.Unresolved); n > 0 {
			fmt.Fprintf(&b, "## Unresolved cells (%d)\n\n", n)
			for _, c := range firstUnresolved(rep) {
				fmt.Fprintf(&b, "- row %d, `%s`: %s\n", c.Row+1, c.Column, c.Reason)
			}
			if n > maxUnresolvedListed {
				fmt.Fprintf(&b, "- ... and %d more\n", n-maxUnresolvedListed)
			}
			b.WriteString("\n")
		}
	}

	writeAssessmentMarkdown(&b, m.Assessment)
	if m.Output != "" {
		fmt.Fprintf(&b, "Cleaned data: `%s`\n", m.Output)
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write markdown report")
}

// RenderIssues writes only the advisory issue report of m, for runs that stop
// before cleaning.
func RenderIssues(w io.Writer, f Format, m *Manifest) error {
	var b strings.Builder
	switch f {
	case FormatJSON:
		return RenderJSON(w, &Manifest{RunID: m.RunID, Source: m.Source, StartedAt: m.StartedAt, FinishedAt: m.FinishedAt,
			Assessment: m.Assessment, Warnings: m.Warnings})
	case FormatMarkdown:
		fmt.Fprintf(&b, "# Issue report: %s\n\n", m.Source)
		for _, warn := range m.Warnings {
			fmt.Fprintf(&b, "> **Warning:** %s\n", warn)
		}
		if len(m.Warnings) > 0 {
			b.WriteString("\n")
		}
		if m.Assessment.Empty() {
			b.WriteString("No issues reported.\n")
		}
		writeAssessmentMarkdown(&b, m.Assessment)
	default:
		for _, warn := range m.Warnings {
			b.WriteString(pterm.Warning.Sprintln(warn))
		}
		if m.Assessment.Empty() {
			b.WriteString(pterm.Info.Sprintln("No issues reported for " + m.Source))
		}
		if err := writeAssessmentText(&b, m.Assessment); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write issue report")
}

func writeAssessmentText(b *strings.Builder, a *issues.Assessment) error {
	if a.Empty() {
		return nil
	}
	b.WriteString(pterm.DefaultSection.WithLevel(2).Sprint("AI issue report (advisory)"))
	b.WriteString("\n")
	if a.Summary != "" {
		fmt.Fprintf(b, "%s %s\n", severityLabel(a.Severity), a.Summary)
	}
	if len(a.Issues) > 0 {
		data := pterm.TableData{{"Severity", "Issue", "Columns"}}
		for _, is := range a.Issues {
			data = append(data, []string{severityLabel(is.Severity), is.Description, strings.Join(is.Columns, ", ")})
		}
		if err := writeTable(b, data); err != nil {
			return err
		}
	}
	for _, r := range a.Recommendations {
		fmt.Fprintf(b, "  - %s\n", r)
	}
	if a.Model != "" {
		fmt.Fprintf(b, "%s\n", pterm.Gray(fmt.Sprintf("model %s, %d tokens", a.Model, a.Usage.TotalTokens)))
	}
	return nil
}

func writeAssessmentMarkdown(b *strings.Builder, a *issues.Assessment) {
	if a.Empty() {
		return
	}
	b.WriteString("## AI issue report (advisory)\n\n")
	if a.Summary != "" {
		fmt.Fprintf(b, "**%s:** %s\n\n", a.Severity, a.Summary)
	}
	if len(a.Issues) > 0 {
		b.WriteString("| Severity | Issue | Columns |\n|---|---|---|\n")
		for _, is := range a.Issues {
			fmt.Fprintf(b, "| %s |\n", strings.Join(escapeCells([]string{string(is.Severity), is.Description, strings.Join(is.Columns, ", ")}), " | "))
		}
		b.WriteString("\n")
	}
	if len(a.Recommendations) > 0 {
		b.WriteString("Recommendations:\n\n")
		for _, r := range a.Recommendations {
			fmt.Fprintf(b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
}

func writeTable(b *strings.Builder, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	b.WriteString(out)
	b.WriteString("\n")
	return nil
}

func columnTable(rep *cleaning.Report) [][]string {
	rows := [][]string{{"Column", "Kind", "Missing before", "Missing after", "Imputed"}}
	for _, c := range rep.Columns {
		kind := string(c.KindAfter)
		if c.KindBefore != c.KindAfter && c.KindBefore != "" {
			kind = fmt.Sprintf("%s -> %s", c.KindBefore, c.KindAfter)
		}
		rows = append(rows, []string{
			c.Name, kind,
			strconv.Itoa(c.MissingBefore), strconv.Itoa(c.MissingAfter), strconv.Itoa(c.Imputed),
		})
	}
	return rows
}

func describeOp(op cleaning.Operation) string {
	if op.Column == "" {
		return fmt.Sprintf("%s: %s (%d)", op.Step, op.Detail, op.Cells)
	}
	return fmt.Sprintf("%s %s: %s (%d)", op.Step, op.Column, op.Detail, op.Cells)
}

func firstUnresolved(rep *cleaning.Report) []cleaning.CellRef {
	if len(rep.Unresolved) > maxUnresolvedListed {
		return rep.Unresolved[:maxUnresolvedListed]
	}
	return rep.Unresolved
}

func severityLabel(s issues.Severity) string {
	switch s {
	case issues.High:
		return pterm.Red(string(s))
	case issues.Low:
		return pterm.Green(string(s))
	default:
		return pterm.Yellow(string(s))
	}
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(c, "|", "\\|"), "\n", " ")
	}
	return out
}
