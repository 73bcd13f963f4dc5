package cmd

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/export"
	"github.com/KaramelBytes/datatidy-cli/internal/issues"
	"github.com/KaramelBytes/datatidy-cli/internal/pipeline"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

var (
	cleanFlags      runFlags
	cleanOutputPath string
	cleanReportPath string
	cleanReportFmt  string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Profile, diagnose and clean a CSV/XLSX/XLS file",
	Example: `  datatidy clean sales.csv
  datatidy clean sales.xlsx --sheet Q3 -o sales_clean.csv
  datatidy clean survey.csv --case title --threshold 0.3 --no-ai
  datatidy clean data.csv --report report.md --format markdown`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt, err := pipelineOptions(cmd, c, &cleanFlags)
		if err != nil {
			return err
		}
		opt.Output = cleanOutputPath

		format := reportFormat(cmd, cleanReportFmt, cleanReportPath)
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		reporter, err := buildReporter(c, &cleanFlags, ai.NewLimiter(c.RequestsPerMinute))
		if err != nil {
			return err
		}

		var spinner *pterm.SpinnerPrinter
		if reporter != nil && reporter != issues.Off && f == export.FormatText && cleanReportPath == "" {
			spinner, _ = pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Cleaning " + filepath.Base(args[0]))
		}
		run, err := pipeline.NewRunner(opt, reporter).Run(cmd.Context(), args[0])
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}
		return writeReport(cmd, f, cleanReportPath, run.Manifest(), export.Render)
	},
}

// reportFormat returns the --format value, or the one implied by the report
// file extension when --format was not given.
func reportFormat(cmd *cobra.Command, flag, reportPath string) string {
	if changed(cmd, "format") || reportPath == "" {
		return flag
	}
	switch strings.ToLower(filepath.Ext(reportPath)) {
	case ".md", ".markdown":
		return string(export.FormatMarkdown)
	case ".json":
		return string(export.FormatJSON)
	}
	return flag
}

// writeReport renders m to stdout, or to reportPath with a one-line notice
// on stdout.
func writeReport(cmd *cobra.Command, f export.Format, reportPath string, m *export.Manifest, render func(w io.Writer, f export.Format, m *export.Manifest) error) error {
	out := cmd.OutOrStdout()
	if reportPath == "" {
		return render(out, f, m)
	}
	var buf bytes.Buffer
	if f == export.FormatText {
		// No ANSI sequences in files.
		pterm.DisableColor()
		defer pterm.EnableColor()
	}
	if err := render(&buf, f, m); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(reportPath, buf.Bytes()); err != nil {
		return err
	}
	for _, w := range m.Warnings {
		fmt.Fprint(out, pterm.Warning.Sprintln(w))
	}
	if m.Output != "" {
		fmt.Fprint(out, pterm.Success.Sprintln("Cleaned data written to "+m.Output))
	}
	fmt.Fprint(out, pterm.Success.Sprintln("Report written to "+reportPath))
	return nil
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	addLoadFlags(cleanCmd, &cleanFlags)
	addCleanFlags(cleanCmd, &cleanFlags)
	addReporterFlags(cleanCmd, &cleanFlags)
	cleanCmd.Flags().StringVarP(&cleanOutputPath, "output", "o", "", "cleaned CSV path (default cleaned_<name>.csv next to the input)")
	cleanCmd.Flags().StringVar(&cleanReportPath, "report", "", "write the cleaning report to this file instead of stdout")
	cleanCmd.Flags().StringVar(&cleanReportFmt, "format", "text", "report format: text|markdown|json")
}
