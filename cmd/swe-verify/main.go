package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "swe-verify",
		Short: "swe-verify - Container-based task verification",
		Long: `swe-verify checks agent-produced patches against held-out tests.
For each task it builds the task's image, starts a container, applies
the agent patch and the test patch, runs the task's test command and
records a per-task verdict plus a run-level summary.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
