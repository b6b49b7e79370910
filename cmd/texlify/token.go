package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/texlify/texlify/adapters/auth"
	"github.com/texlify/texlify/config"
)

var (
	tokenUserID string
	tokenEmail  string
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a JWT signing secret",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(auth.GenerateSecret())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	Long: `Mint a JWT for local development and testing, signed with the
configured secret. Production tokens come from the auth provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}

		provider := auth.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
		token, expiresAt, err := provider.GenerateToken(tokenUserID, tokenEmail)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires: %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenUserID, "user", "dev-user", "user ID for the token subject")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
}
