package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "texlify",
	Short: "Text-to-LaTeX conversion service with metering and admission control",
	Long: `Texlify converts plain text and documents to LaTeX using a language
model, metered per caller with rate limits and daily quotas.

Quick start:
  texlify secret    # Generate a JWT signing secret
  texlify serve     # Start the API server

Management:
  texlify validate  # Validate configuration
  texlify token     # Mint a development access token`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "texlify.yaml", "config file path")
}
