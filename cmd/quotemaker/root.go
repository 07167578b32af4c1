package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type ctxKey string

const appKey ctxKey = "app"

// cli carries the persistent flags and the App built from them, so run can
// close it whichever command ran.
type cli struct {
	cfgPath   string
	logLevel  string
	modelName string
	app       *App
}

// run builds the command tree, executes it with args and releases the App.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(c *cli) *cobra.Command {
	var opts MakeOptions

	cmd := &cobra.Command{
		Use:           "quotemaker",
		Short:         "Make inspirational quote images from a Markov chain and a random photo",
		Long:          "With no subcommand quotemaker makes one image, the same as 'quotemaker make'.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return c.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMake(cmd, opts)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&c.cfgPath, "config", "config.json", "path to the JSON config file (created with defaults if missing)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.modelName, "model", "", "override markov.model_name")
	addMakeFlags(cmd, &opts)

	cmd.AddCommand(newMakeCmd())
	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newSentenceCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration, builds the logger and stashes the App in the
// command context for subcommands.
func (c *cli) setup(cmd *cobra.Command) error {
	config, err := LoadConfig(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		config.Log.Level = c.logLevel
	}
	if c.modelName != "" {
		config.Markov.ModelName = c.modelName
	}
	if err = config.Validate(); err != nil {
		return err
	}

	logger, closer := newLogger(config.Log, cmd.ErrOrStderr())
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	logger.Debug("Configuration loaded", slog.String("path", c.cfgPath), slog.Any("config", *config))

	app, err := NewApp(config, logger, cmd.OutOrStdout())
	if err != nil {
		_ = closer.Close()
		return err
	}
	app.closers = append(app.closers, closer)
	c.app = app

	cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
	return nil
}

func getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appKey).(*App)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config or database needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quotemaker %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
