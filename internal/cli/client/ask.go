package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/nutrirag/internal/api/handlers"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var historyPath string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a nutrition or activity question",
		Long: `Sends the question to POST /query and prints the answer.

--history takes a JSON array of {"sender","text","timestamp"} turns;
use - to read it from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadHistory(historyPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			answer, err := NewAPIClientWithCmd(cmd).Query(cmd.Context(), handlers.QueryRequest{
				Query:   strings.Join(args, " "),
				History: history,
			})
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), answer, outputJSON)
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "Path to a JSON conversation history file")

	return cmd
}

// PingCmd creates the ping command.
func PingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			answer, err := NewAPIClientWithCmd(cmd).Test(cmd.Context())
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), answer, outputJSON)
		},
	}
}

func loadHistory(path string, stdin io.Reader) ([]handlers.HistoryTurn, error) {
	if path == "" {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var history []handlers.HistoryTurn
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return history, nil
}

func printAnswer(w io.Writer, answer string, outputJSON bool) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"answer": answer})
	}
	_, err := fmt.Fprintln(w, answer)
	return err
}
