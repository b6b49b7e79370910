package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/texlify/texlify/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the texlify API server.

The server will:
  - Load configuration from texlify.yaml (or --config)
  - Apply TEXLIFY_* environment overrides
  - Open the database and run migrations
  - Serve the conversion API with rate limiting and quota enforcement

Environment overrides (for Docker deployments):
  TEXLIFY_GEMINI_API_KEY    - Gemini API key (required)
  TEXLIFY_DATABASE_PATH     - Database path (default: texlify.db)
  TEXLIFY_SERVER_PORT       - Server port (default: 8080)
  TEXLIFY_JWT_SECRET        - JWT signing secret
  TEXLIFY_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  texlify serve
  texlify serve --config /etc/texlify/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Printf("No configuration file at %s.\n", cfgFile)
		fmt.Println()
		fmt.Println("Create one, for example:")
		fmt.Println()
		fmt.Println("  gemini:")
		fmt.Println("    api_key: ${TEXLIFY_GEMINI_API_KEY}")
		fmt.Println("  auth:")
		fmt.Println("    jwt_secret: ${TEXLIFY_JWT_SECRET}")
		return nil
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run blocks until shutdown
	return app.Run()
}
