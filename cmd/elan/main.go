package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Provider API keys are commonly kept in .env during development;
	// config values reference them via ${VAR} expansion.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:     "elan",
		Short:   "Elan — AI request orchestration gateway",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newCostCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
