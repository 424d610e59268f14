package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/theapemachine/mem0-go/pkg/logging"
	"github.com/theapemachine/mem0-go/pkg/service"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configured credentials against the memory server",
	Long:  longValidate,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Named("validate")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := service.ValidateCredentials(ctx, credentialMap()); err != nil {
			return err
		}

		logger.Info("credentials validated, memory server reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

var longValidate = `
Parse the configured credentials, push the provider configuration to the
memory server, and run a sanity search against a reserved scope. Succeeds
when the server is reachable and accepted the configuration.
`
