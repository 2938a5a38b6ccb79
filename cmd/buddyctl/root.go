package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/cmd/buddyctl/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
)

// numbers formats counts with thousands separators.
var numbers = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "buddyctl",
	Short: "Explore and exercise buddy-system memory arenas",
	Long: `buddyctl drives the buddykit buddy allocator. It prints size class
tables, replays allocation scripts, renders arena maps and stress tests a
shared allocator with concurrent producers and consumers.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger.Init(logger.Options{Enabled: verbose && !quiet, Level: level})
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Arena configuration file (JSON)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// arenaFlags are the -b/-l overrides shared by commands that build an arena.
type arenaFlags struct {
	block  int
	length int
}

func (f *arenaFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.block, "block", "b", 0, "Basic block size in bytes (default from config)")
	cmd.Flags().IntVarP(&f.length, "length", "l", 0, "Arena length in bytes (default from config)")
}

// loadArenaConfig reads --config when given and applies the overrides in f,
// which may be nil.
func loadArenaConfig(f *arenaFlags) (*buddy.Config, error) {
	cfg := buddy.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = buddy.LoadConfig(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if f != nil && f.block != 0 {
		cfg.BasicBlockSize = f.block
	}
	if f != nil && f.length != 0 {
		cfg.Length = f.length
	}
	return cfg, nil
}

// allocatorOptions returns the options every command builds allocators with.
func allocatorOptions(cfg *buddy.Config) []buddy.Option {
	return []buddy.Option{
		buddy.WithBacking(cfg.Backing),
		buddy.WithLogger(logger.L),
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatNumber(n int64) string {
	return numbers.Sprintf("%d", n)
}
