package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mem0-go/pkg/config"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/mem0"
)

const validationTimeout = 10 * time.Second

/*
ValidateCredentials proves a credential map actually works before the
provider instance is accepted: parse and validate the configuration, build a
throwaway client, push the provider configuration to the server, and run a
sanity search against a reserved scope. An empty result is fine; a transport
or configuration fault is not.
*/
func ValidateCredentials(ctx context.Context, creds map[string]any) error {
	cfg, err := config.FromMap(creds)
	if err != nil {
		return err
	}

	serverConfig, err := cfg.ServerConfig()
	if err != nil {
		return err
	}

	opts := []mem0.RestOption{mem0.WithServerConfig(serverConfig)}
	if cfg.APIKey != "" {
		opts = append(opts, mem0.WithAPIKey(cfg.APIKey))
	}

	client := mem0.NewRestClient(cfg.Endpoint, opts...)

	vctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	defer func() {
		if closeErr := client.Close(context.Background()); closeErr != nil {
			log.Default().WithPrefix("validate").Warn("probe client close failed", "error", closeErr)
		}
	}()

	_, err = client.Search(vctx, mem0.SearchRequest{
		Query: "test",
		Scope: mem0.Scope{UserID: "validation_test"},
		Limit: 1,
	})

	// A not-found answer still proves the server is reachable and accepted
	// our configuration.
	if err != nil && !errors.IsNotFound(err) {
		return errors.NewError("credential validation failed", err)
	}

	return nil
}
