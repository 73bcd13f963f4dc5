package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datatidy-cli/internal/config"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or extend the issue reporter model catalog",
	Example: `  datatidy models show
  datatidy models show --provider groq
  datatidy models sync --file ./models.json`,
}

var showProvider string

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		data := pterm.TableData{{"Model", "Provider", "Context", "$/1K in", "$/1K out"}}
		for _, m := range ai.Catalog(showProvider) {
			data = append(data, []string{
				m.Name, m.Provider, strconv.Itoa(m.ContextTokens),
				strconv.FormatFloat(m.InputPerK, 'f', -1, 64), strconv.FormatFloat(m.OutputPerK, 'f', -1, 64),
			})
		}
		if len(data) == 1 {
			return errors.WithHintf(errors.Newf("no models for provider %q", showProvider), "known providers: %v", ai.Providers())
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return errors.Wrap(err, "render table")
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register a JSON model catalog merged over the built-in one on every run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return errors.New("--file is required")
		}
		abs, err := filepath.Abs(syncPath)
		if err != nil {
			return errors.Wrap(err, "resolve catalog path")
		}
		m, err := ai.LoadCatalogFromJSON(abs)
		if err != nil {
			return errors.WithHint(errors.Wrap(err, "load catalog"), `expected {"<model>": {"provider": "...", "context_tokens": 8192, "input_per_k": 0, "output_per_k": 0}}`)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		c.ModelsCatalog = abs
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		ai.MergeCatalog(m)
		fmt.Fprint(cmd.OutOrStdout(), pterm.Success.Sprintf("Registered %d models from %s\n", len(m), abs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsShowCmd.Flags().StringVar(&showProvider, "provider", "", "only list models of this provider")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
}
