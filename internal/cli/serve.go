package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memory HTTP server",
		Run:   runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load()

	eng, err := buildEngine(cfg)
	if err != nil {
		exitErr("serve", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, _, err := server.Start(ctx, cfg, eng)
	if err != nil {
		exitErr("serve", err)
	}
	log.Printf("mnemo serving on %s (storage: %s)", addr, cfg.Storage.Engine)

	<-ctx.Done()
	log.Println("mnemo shutting down")
}
