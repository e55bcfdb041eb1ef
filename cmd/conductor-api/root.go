package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "conductor-api",
	Short: "Batch OCR job controller API",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
}
