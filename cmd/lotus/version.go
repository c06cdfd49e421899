package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lotus "github.com/BrainbaseHQ/lotus-prompt"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of lotus",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lotus version %s\n", lotus.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
