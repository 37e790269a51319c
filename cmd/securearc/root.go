package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/kharonsec/securearc"
)

// Exit codes per the CLI's thin-collaborator contract: 0 success, 1
// general/IO/argument error, 2 authentication failed, 3 archive destroyed.
const (
	exitOK                  = 0
	exitGeneralError        = 1
	exitAuthenticationError = 2
	exitDestroyed           = 3
)

var logLevel slog.LevelVar

var rootCmd = &cobra.Command{
	Use:   "securearc",
	Short: "Create and unlock encrypted, self-destructing archives",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stderr, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("verbose", false, "print debug-level progress events")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
}

// execute runs the root command and maps the returned error, if any, to an
// exit code via the library's stable ErrorKind taxonomy rather than string
// matching.
func execute() {
	err := rootCmd.Execute()
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch securearc.Kind(err) {
	case securearc.KindInvalidPassword:
		return exitAuthenticationError
	case securearc.KindArchiveDestroyed, securearc.KindMaxAttemptsExceeded:
		return exitDestroyed
	default:
		return exitGeneralError
	}
}

// progressLogger returns a securearc.ProgressFunc that logs each event at
// debug level, suitable for --verbose runs of create/extract.
func progressLogger() securearc.ProgressFunc {
	return func(ev securearc.ProgressEvent) {
		slog.Debug("progress", "phase", ev.Phase, "file", ev.Filename, "current", ev.Current, "total", ev.Total)
	}
}
