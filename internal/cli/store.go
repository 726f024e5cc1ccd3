package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/engine"
	"github.com/scrypster/mnemo/pkg/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a fact",
		Long:  "Store a fact for an agent. Content can be a positional arg or piped via stdin.",
		Run:   runStore,
	}

	cmd.Flags().StringP("agent", "a", "", "Owning agent id (required)")
	cmd.Flags().StringP("category", "c", "general", "Category")
	cmd.Flags().StringP("keywords", "k", "", "Comma-separated keywords (extracted from content when empty)")
	cmd.Flags().StringP("importance", "i", "", "Importance: low, medium, high, critical")
	cmd.Flags().String("visibility", "", "Visibility: private, shared, broadcast")

	cmd.MarkFlagRequired("agent")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	agent, _ := cmd.Flags().GetString("agent")
	category, _ := cmd.Flags().GetString("category")
	keywordsStr, _ := cmd.Flags().GetString("keywords")
	importance, _ := cmd.Flags().GetString("importance")
	visibility, _ := cmd.Flags().GetString("visibility")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("store", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var keywords []string
	if keywordsStr != "" {
		for _, k := range strings.Split(keywordsStr, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	eng, err := buildEngine(config.Load())
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	result, err := eng.Store(cmd.Context(), &engine.StoreRequest{
		AgentID:    agent,
		Category:   category,
		Content:    strings.TrimSpace(content),
		Keywords:   keywords,
		Importance: types.Importance(importance),
		Visibility: types.Visibility(visibility),
	})
	if err != nil {
		exitErr("store", err)
	}

	b, _ := json.Marshal(result)
	fmt.Println(string(b))
}
