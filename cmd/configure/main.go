package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viziersvault/vault-session/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "vault-session-configure",
		Short: "Configuration tool for the session service",
		Long:  "CLI tool for managing allowed origins, quota tables and plan assignments",
	}

	rootCmd.AddCommand(commands.NewOriginsCmd())
	rootCmd.AddCommand(commands.NewQuotasCmd())
	rootCmd.AddCommand(commands.NewPlanCmd())
	rootCmd.AddCommand(commands.NewListCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
