package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		corpus string
		reset  bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model on a quote corpus",
		Long: "Train reads one quote per line and adds it to the configured model. " +
			"Use --reset to start the model over instead of adding to it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if corpus == "" {
				corpus = app.config.Corpus.QuotesPath
			}
			model, err := app.Train(cmd.Context(), corpus, reset)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "trained model %q (state size %d) on %s\n", model.Name, model.StateSize, corpus)
			return err
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "", "corpus file (defaults to corpus.quotes_path)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing model before training")
	return cmd
}
