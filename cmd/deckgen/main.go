package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating presentation: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deckgen",
	Short: "Deckforge CLI - generate slide decks from a title and a message",
	Long: `deckgen plans, researches and assembles a slide deck with language models and
writes it as JSON.

Examples:
  # Generate with arguments
  deckgen generate "Quarterly Update" "Revenue grew 20% and churn fell"

  # Choose the output file name
  deckgen generate "Quarterly Update" "Revenue grew" q1.json

  # Prompt for title and message
  deckgen generate`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write structured logs to stderr")
}
