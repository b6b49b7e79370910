package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/texlify/texlify/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration valid")
		fmt.Printf("  Server:           %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Database:         %s\n", cfg.Database.Driver)
		fmt.Printf("  Model:            %s\n", cfg.Gemini.Model)
		fmt.Printf("  Billing:          %s\n", cfg.Billing.Mode)
		fmt.Printf("  Limiter overrides: %d\n", len(cfg.Limiters))
		fmt.Printf("  Tier overrides:    %d\n", len(cfg.Tiers))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
