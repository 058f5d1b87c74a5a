package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect per-provider rate limiter state",
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
