package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall relevant facts for a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().StringP("agent", "a", "", "Owning agent id (required)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")

	cmd.MarkFlagRequired("agent")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	agent, _ := cmd.Flags().GetString("agent")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	eng, err := buildEngine(config.Load())
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	results, err := eng.Recall(cmd.Context(), agent, query, limit)
	if err != nil {
		exitErr("recall", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
