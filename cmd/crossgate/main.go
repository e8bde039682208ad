package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "crossgate",
		Short: "Crossgate CI - Pipeline orchestrator for multi-environment verification",
		Long: `Crossgate CI watches repository events and runs the verification pipeline
across a matrix of platform/toolchain environments. Each environment executes
its quality gates in order with fail-fast semantics, and the aggregate verdict
is recorded for later inspection.`,
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
