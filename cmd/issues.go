package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/export"
	"github.com/KaramelBytes/datatidy-cli/internal/pipeline"
)

var (
	issFlags      runFlags
	issReportFmt  string
	issReportPath string
)

var issuesCmd = &cobra.Command{
	Use:   "issues <file>",
	Short: "Ask the AI issue reporter for data quality issues without cleaning",
	Example: `  datatidy issues sales.csv
  datatidy issues sales.csv --provider ollama --model mistral:7b-instruct
  datatidy issues sales.csv --format json --report issues.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt, err := pipelineOptions(cmd, c, &issFlags)
		if err != nil {
			return err
		}
		f, err := export.ParseFormat(reportFormat(cmd, issReportFmt, issReportPath))
		if err != nil {
			return err
		}
		reporter, err := buildReporter(c, &issFlags, ai.NewLimiter(c.RequestsPerMinute))
		if err != nil {
			return err
		}
		run, err := pipeline.NewRunner(opt, reporter).Execute(cmd.Context(), args[0], pipeline.StageIssues)
		if err != nil {
			return err
		}
		return writeReport(cmd, f, issReportPath, run.Manifest(), export.RenderIssues)
	},
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	addLoadFlags(issuesCmd, &issFlags)
	addReporterFlags(issuesCmd, &issFlags)
	issuesCmd.Flags().StringVar(&issReportPath, "report", "", "write the issue report to this file instead of stdout")
	issuesCmd.Flags().StringVar(&issReportFmt, "format", "text", "report format: text|markdown|json")
}
