package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/nutrirag/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrirag",
		Short: "Nutrirag CLI - ask nutrition and activity questions",
		Long: `Nutrirag CLI sends questions to a running nutriragd server.

Environment variables:
  NUTRIRAG_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	rootCmd.PersistentFlags().Duration("timeout", 90*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.PingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
