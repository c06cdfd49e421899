package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BrainbaseHQ/lotus-prompt/script"
)

var validateCmd = &cobra.Command{
	Use:   "validate <script.json>",
	Short: "Check a script for structural errors",
	Long:  `Decodes the script and reports malformed statements, talk statements outside loop headers, loops without completion paths, and loop controls outside until blocks.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(args[0]); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s is valid %s\n", args[0], color.GreenString("✔"))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = script.Decode(data)
	return err
}
