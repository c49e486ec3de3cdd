// Package cmd provides the vmcoredemo command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmcoredemo",
	Short: "Drives a vmcore.System for manual testing and diagnostics",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
