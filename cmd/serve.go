package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/config"
	httpapix "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation API over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg, err := configx.New[httpapix.Config]("HTTP")
	if err != nil {
		return err
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := httpapix.NewServer(*httpCfg, a.orchestrator)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
