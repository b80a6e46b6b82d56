package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sentibot",
	Short: "Telegram bot that analyzes message sentiment and describes photos",
	Long:  "Sentibot relays Telegram messages to Azure Text Analytics and Computer Vision and replies with a short summary.",
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
