package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/pipeline"
	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

var (
	profFlags      runFlags
	profOutputPath string
	profJSON       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a CSV/XLSX/XLS file and print a Markdown summary",
	Example: `  datatidy profile sales.csv
  datatidy profile book.xlsx --sheet 2 --sample-rows 10 -o profile.md
  datatidy profile sales.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt, err := pipelineOptions(cmd, c, &profFlags)
		if err != nil {
			return err
		}
		run, err := pipeline.NewRunner(opt, nil).Execute(cmd.Context(), args[0], pipeline.StageProfile)
		if err != nil {
			return err
		}

		var body []byte
		if profJSON {
			if body, err = utils.PrettyJSON(run.Profile); err != nil {
				return err
			}
			body = append(body, '\n')
		} else {
			body = []byte(run.Profile.Markdown())
		}
		if profOutputPath == "" {
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		if err := utils.SafeWriteFile(profOutputPath, body); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), pterm.Success.Sprintln("Wrote profile to "+profOutputPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addLoadFlags(profileCmd, &profFlags)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "emit the profile as JSON")
}
