package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addMakeFlags(cmd *cobra.Command, opts *MakeOptions) {
	cmd.Flags().BoolVar(&opts.Real, "real", false, "use a real quote from the dataset instead of a generated one")
	cmd.Flags().StringVar(&opts.AuthorMode, "author-mode", "", "override render.author_mode (random, default, none, quote)")
	cmd.Flags().StringVar(&opts.Query, "query", "", "override background.query")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "override output.dir")
}

func newMakeCmd() *cobra.Command {
	var opts MakeOptions
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Make one quote image and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMake(cmd, opts)
		},
	}
	addMakeFlags(cmd, &opts)
	return cmd
}

func runMake(cmd *cobra.Command, opts MakeOptions) error {
	res, err := getApp(cmd).Make(cmd.Context(), opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Path)
	return err
}
