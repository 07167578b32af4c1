package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSentenceCmd() *cobra.Command {
	var (
		start string
		count int
	)
	cmd := &cobra.Command{
		Use:   "sentence",
		Short: "Print generated sentences without making an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			for range max(count, 1) {
				s, err := app.Sentence(cmd.Context(), start)
				if err != nil {
					return err
				}
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), s); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "begin every sentence with these words")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of sentences")
	return cmd
}
