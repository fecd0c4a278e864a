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

	"github.com/joshuapare/simplegc/gc"
	"github.com/joshuapare/simplegc/gc/alloc"
	"github.com/joshuapare/simplegc/gc/machine"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	trace   bool

	// Layout flags
	heapSize  uint64
	stackSize uint64
	dataSize  uint64

	sizeClasses string
)

var printer = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "gcctl",
	Short: "Exercise the simplegc conservative collector",
	Long: `gcctl drives the simplegc collector against a simulated mutator: a
register file, a stack, a global-data segment and a heap laid out in one
mapped address space. It runs the collector's scenario suite, stresses the
allocator past its heap budget, and reports collection statistics.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		BoolVar(&trace, "trace", false, "Log every collector phase and block to stderr")

	d := machine.DefaultConfig()
	rootCmd.PersistentFlags().Uint64Var(&heapSize, "heap-size", d.HeapSize, "Heap segment size in bytes")
	rootCmd.PersistentFlags().Uint64Var(&stackSize, "stack-size", d.StackSize, "Stack size in bytes")
	rootCmd.PersistentFlags().Uint64Var(&dataSize, "data-size", d.DataSize, "Global-data segment size in bytes")
	rootCmd.PersistentFlags().
		StringVar(&sizeClasses, "size-classes", alloc.BalancedClasses.Name, "Host free-list layout (fine, balanced, coarse)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// newSimulation lays out a machine from the layout flags and returns a
// collector over it with the given heap budget.
func newSimulation(budget uint64) (*gc.Simulation, error) {
	classes, err := alloc.SizeClassesByName(sizeClasses)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if trace {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	sim, err := gc.NewSimulation(
		machine.Config{HeapSize: heapSize, StackSize: stackSize, DataSize: dataSize},
		gc.Config{
			HeapBudget:         budget,
			Verbose:            trace,
			OverwriteOnReclaim: true,
			Logger:             logger,
			SizeClasses:        &classes,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up simulation: %w", err)
	}
	return sim, nil
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

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatNumber groups digits the English way, e.g. 18432 -> "18,432".
func formatNumber[T ~int | ~int64 | ~uint64](n T) string {
	return printer.Sprintf("%d", n)
}
