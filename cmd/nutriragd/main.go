package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/nutrirag/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutriragd",
		Short: "Nutrirag query router daemon",
		Long:  "Nutrirag daemon for serving nutrition and activity questions and managing index snapshots",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ClassifyCmd())
	rootCmd.AddCommand(admin.SnapshotCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
