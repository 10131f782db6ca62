// Command llmtrace demonstrates instrumenting an OpenAI-compatible chat
// client and browsing the spans it records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "llmtrace",
		Short: "Instrument OpenAI-compatible chat calls and inspect the resulting spans",
	}

	rootCmd.AddCommand(demoCommand())
	rootCmd.AddCommand(spansCommand())
	rootCmd.AddCommand(inspectCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "llmtrace:", err)
		os.Exit(1)
	}
}
