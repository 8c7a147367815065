// Command slidepdf-cli converts a WeChat article into a slide PDF locally,
// without running the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "slidepdf-cli",
	Short:         "Turn the slides embedded in a WeChat article into a PDF",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline details to stderr")
	rootCmd.AddCommand(convertCmd)
}

func main() {
	// Same SLIDEPDF_* settings as the server; a local .env is optional.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printSummary(path string, pages, size int) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprint(os.Stdout, "✓ ")
	fmt.Fprintf(os.Stdout, "%d pages, %d bytes → %s\n", pages, size, path)
}
