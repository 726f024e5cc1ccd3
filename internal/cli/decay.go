package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Run one decay and consolidation pass",
		Long: "Archive stale facts, downgrade importance over time, and merge " +
			"near-duplicate pairs. Intended to run once per day from a scheduler.",
		Run: runDecay,
	}
	RootCmd.AddCommand(cmd)
}

func runDecay(cmd *cobra.Command, args []string) {
	eng, err := buildEngine(config.Load())
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	run := eng.RunMaintenance(cmd.Context())

	b, _ := json.MarshalIndent(run, "", "  ")
	fmt.Println(string(b))
	if len(run.Errors) > 0 {
		os.Exit(1)
	}
}
