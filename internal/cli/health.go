package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the store health report",
		Run:   runHealth,
	}
	RootCmd.AddCommand(cmd)
}

func runHealth(cmd *cobra.Command, args []string) {
	eng, err := buildEngine(config.Load())
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	report, err := eng.Health(cmd.Context())
	if err != nil {
		exitErr("health", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}
