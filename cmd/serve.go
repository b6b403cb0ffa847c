package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatgraph-poc/server/internal/container"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		appConfig.Server.Addr = serveAddr
	}
	c, err := container.New(ctx, appConfig)
	if err != nil {
		return err
	}
	defer c.Close()

	server, err := c.Server()
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
