package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
	"github.com/KaramelBytes/datatidy-cli/internal/pipeline"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

var (
	cbFlags       runFlags
	cbOutDir      string
	cbConcurrency int
	cbQuiet       bool
)

var cleanBatchCmd = &cobra.Command{
	Use:   "clean-batch <files...>",
	Short: "Clean several files concurrently",
	Long: `Runs the full pipeline on every file (glob patterns are expanded). A
failing file does not stop the others; the command exits non-zero when any
file failed.`,
	Example: `  datatidy clean-batch 'exports/*.csv' --out-dir cleaned
  datatidy clean-batch a.csv b.xlsx --concurrency 2 --no-ai`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		files, err := utils.ExpandInputs(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no input files matched")
		}
		opt, err := pipelineOptions(cmd, c, &cbFlags)
		if err != nil {
			return err
		}
		opt.OutDir = cbOutDir

		concurrency := c.BatchConcurrency
		if changed(cmd, "concurrency") {
			concurrency = cbConcurrency
		}
		if concurrency < 1 {
			concurrency = 1
		}
		reporter, err := buildReporter(c, &cbFlags, ai.NewLimiter(c.RequestsPerMinute))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !cbQuiet {
			fmt.Fprint(out, pterm.Info.Sprintf("Cleaning %d files (concurrency %d)\n", len(files), concurrency))
		}
		results := pipeline.NewRunner(opt, reporter).RunBatch(cmd.Context(), files, concurrency)

		data := pterm.TableData{{"File", "Status", "Rows", "Warnings", "Output / error", "Time"}}
		for _, r := range results {
			row := []string{filepath.Base(r.Path), "ok", "", "", "", r.Duration.Round(time.Millisecond).String()}
			if r.Err != nil {
				row[1] = pterm.Red("failed")
				row[4] = r.Err.Error()
			} else {
				row[1] = pterm.Green("ok")
				row[2] = fmt.Sprintf("%d -> %d", r.Run.Report.RowsBefore, r.Run.Report.RowsAfter)
				row[3] = strconv.Itoa(len(r.Run.Warnings))
				row[4] = r.Run.Output
			}
			data = append(data, row)
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return errors.Wrap(err, "render table")
		}
		fmt.Fprintln(out, table)

		if n := pipeline.Failed(results); n > 0 {
			return errors.Newf("%d of %d files failed", n, len(results))
		}
		if !cbQuiet {
			fmt.Fprint(out, pterm.Success.Sprintf("Cleaned %d files\n", len(results)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanBatchCmd)
	addLoadFlags(cleanBatchCmd, &cbFlags)
	addCleanFlags(cleanBatchCmd, &cbFlags)
	addReporterFlags(cleanBatchCmd, &cbFlags)
	cleanBatchCmd.Flags().StringVar(&cbOutDir, "out-dir", "", "directory for cleaned files (default: next to each input)")
	cleanBatchCmd.Flags().IntVar(&cbConcurrency, "concurrency", 0, "files processed in parallel (overrides config)")
	cleanBatchCmd.Flags().BoolVar(&cbQuiet, "quiet", false, "suppress progress and non-essential output")
}
