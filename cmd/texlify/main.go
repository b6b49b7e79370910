// Package main is the entry point for the texlify server.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Missing .env is fine; real deployments configure through the
	// environment or the YAML file.
	_ = godotenv.Load()

	Execute()
}
