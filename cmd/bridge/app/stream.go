package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zohobridge/mcp-gateway/pkg/config"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/transport"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Run the stdio transport: newline-delimited JSON-RPC over standard input/output",
	RunE:  runStream,
}

func runStream(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.NewValidator().Validate(cfg, false); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	comps, err := buildComponents(cfg)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := checkKVReachable(ctx, comps.store); err != nil {
		return fmt.Errorf("kv store unreachable at boot: %w", err)
	}

	logger.Infow("starting stream transport")
	st := transport.NewStreamTransport(os.Stdin, os.Stdout, comps.dispatcher)
	return st.Run(ctx)
}
