package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lotus",
	Short: "Lotus runs declarative conversation scripts",
	Long:  `Lotus executes conversation scripts: loops of talk exchanges with semantic completion triggers, extraction into session state, and external calls.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "lotus.yaml", "Path to the runtime configuration file")
}
