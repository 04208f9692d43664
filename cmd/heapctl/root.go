package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logFile  string
	logLevel string
)

// num formats counts with digit grouping.
var num = message.NewPrinter(language.English)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Drive and inspect first-fit heaps over page-grown address spaces",
	Long: `heapctl replays allocation scripts against the heapkit allocators,
renders the resulting block chain, runs randomized stress workloads with
invariant checking, and steps through scripts interactively.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logFile, "log-file", "", "Write JSON logs to this file (enables logging)")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (enables logging)")
}

func initLogging() error {
	level := slog.LevelInfo
	if logLevel != "" {
		l, err := logger.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		level = l
	}
	c, err := logger.Init(logger.Options{
		Enabled: logFile != "" || logLevel != "",
		File:    logFile,
		Level:   level,
	})
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	logCloser = c
	return nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		num.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		num.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// progressWriter returns where progress bars draw: stderr, unless the output
// is quiet or machine-readable.
func progressWriter() io.Writer {
	if quiet || jsonOut {
		return io.Discard
	}
	return os.Stderr
}
