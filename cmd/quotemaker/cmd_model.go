package main

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and maintain the trained model",
	}
	cmd.AddCommand(newModelExportCmd())
	cmd.AddCommand(newModelImportCmd())
	cmd.AddCommand(newModelPruneCmd())
	cmd.AddCommand(newModelStatsCmd())
	cmd.AddCommand(newModelRemoveCmd())
	return cmd
}

func newModelExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the model as JSON to a file, or to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			model, err := app.mg.Model(cmd.Context(), app.config.Markov.ModelName)
			if err != nil {
				return fmt.Errorf("model '%s' not found: %w", app.config.Markov.ModelName, err)
			}

			if len(args) == 0 || args[0] == "-" {
				return app.mg.Export(cmd.Context(), model, cmd.OutOrStdout())
			}
			var buf bytes.Buffer
			if err = app.mg.Export(cmd.Context(), model, &buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(args[0], &buf); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported model %q to %s\n", model.Name, args[0])
			return err
		},
	}
}

func newModelImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a model exported as JSON into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open model file: %w", err)
			}
			defer func(file *os.File) {
				_ = file.Close()
			}(file)

			model, err := app.mg.Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported model %q\n", model.Name)
			return err
		},
	}
}

func newModelPruneCmd() *cobra.Command {
	var minCount int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove rare transitions from the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minCount < 1 {
				return fmt.Errorf("--min must be at least 1, got %d", minCount)
			}
			app := getApp(cmd)
			model, err := app.mg.Model(cmd.Context(), app.config.Markov.ModelName)
			if err != nil {
				return fmt.Errorf("model '%s' not found: %w", app.config.Markov.ModelName, err)
			}
			removed, err := app.mg.Prune(cmd.Context(), model, minCount)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d transitions\n", removed)
			return err
		},
	}
	cmd.Flags().IntVar(&minCount, "min", 1, "remove transitions seen this many times or fewer")
	return cmd
}

func newModelStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the size of every model in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			stats, err := app.mg.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "tokens\t%d\n", stats.Tokens)
			fmt.Fprintf(w, "states\t%d\n\n", stats.States)
			fmt.Fprintln(w, "MODEL\tSTATE SIZE\tTRANSITIONS\tTOTAL\tSTARTS\tSENTENCES")
			for _, m := range stats.Models {
				ms := stats.PerModel[m.ID]
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", m.Name, m.StateSize, ms.Transitions, ms.TotalCount, ms.Starts, ms.Sentences)
			}
			return w.Flush()
		},
	}
}

func newModelRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the model so the next run trains it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			model, err := app.mg.Model(cmd.Context(), app.config.Markov.ModelName)
			if err != nil {
				return fmt.Errorf("model '%s' not found: %w", app.config.Markov.ModelName, err)
			}
			if err = app.mg.DeleteModel(cmd.Context(), model); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed model %q (id %d)\n", model.Name, model.ID)
			return err
		},
	}
}
