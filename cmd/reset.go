package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/theapemachine/mem0-go/pkg/config"
	"github.com/theapemachine/mem0-go/pkg/logging"
	"github.com/theapemachine/mem0-go/pkg/mem0"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the entire memory store on the server",
	Long:  longReset,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Named("reset")

		if !resetConfirmed {
			logger.Error("refusing to wipe the store without --yes")
			return nil
		}

		cfg, err := config.FromMap(credentialMap())
		if err != nil {
			return err
		}

		opts := []mem0.RestOption{}
		if cfg.APIKey != "" {
			opts = append(opts, mem0.WithAPIKey(cfg.APIKey))
		}

		client := mem0.NewRestClient(cfg.Endpoint, opts...)
		defer client.Close(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.Reset(ctx); err != nil {
			return err
		}

		logger.Info("memory store reset", "endpoint", cfg.Endpoint)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(
		&resetConfirmed,
		"yes",
		false,
		"confirm wiping every memory in every scope",
	)
}

var longReset = `
Wipe the entire memory store on the configured server, across all users,
agents, apps, and runs. This cannot be undone and requires --yes.
`
