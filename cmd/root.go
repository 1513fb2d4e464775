package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "handset-agent",
	Short: "Conversational handset sales assistant",
	Long: `handset-agent runs the handset sales assistant: it identifies the customer,
recommends phones from the catalog, offers an accessory and hands off to checkout.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configx.SetEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (defaults to ./.env when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(indexCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
