package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/mem0-go/pkg/config"
	"github.com/theapemachine/mem0-go/pkg/dispatch"
	"github.com/theapemachine/mem0-go/pkg/logging"
	"github.com/theapemachine/mem0-go/pkg/loop"
	"github.com/theapemachine/mem0-go/pkg/mem0"
	"github.com/theapemachine/mem0-go/pkg/service"
)

var statusAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tools over MCP on stdio",
	Long:  longServe,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(
		&statusAddr,
		"status-addr",
		"",
		"optional address for the HTTP status endpoint, e.g. :3210",
	)
}

func runServe() error {
	logger := logging.Named("serve")

	disableTelemetry()

	cfg, err := config.FromMap(credentialMap())
	if err != nil {
		return err
	}

	serverConfig, err := cfg.ServerConfig()
	if err != nil {
		return err
	}

	client, err := mem0.CachedClient(cfg.Hash(), func() (mem0.Client, error) {
		opts := []mem0.RestOption{mem0.WithServerConfig(serverConfig)}
		if cfg.APIKey != "" {
			opts = append(opts, mem0.WithAPIKey(cfg.APIKey))
		}
		return mem0.NewRestClient(cfg.Endpoint, opts...), nil
	})
	if err != nil {
		return err
	}

	mgr := loop.NewManager(loop.WithMaxInFlight(cfg.MaxInFlight))
	dispatcher := dispatch.New(client, mgr, cfg)

	var status *service.StatusServer

	addr := statusAddr
	if addr == "" {
		addr = viper.GetString("status.addr")
	}

	if addr != "" {
		status = service.NewStatusServer(mgr, dispatcher)

		go func() {
			if listenErr := status.Listen(addr); listenErr != nil {
				logger.Error("status endpoint stopped", "error", listenErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)

	go func() {
		served <- service.ServeStdio(service.NewMCPServer(dispatcher))
	}()

	logger.Info("memory service ready",
		"endpoint", cfg.Endpoint,
		"async_mode", cfg.AsyncMode,
		"max_in_flight", cfg.MaxInFlight)

	select {
	case err = <-served:
		if err != nil {
			logger.Error("mcp transport failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	mgr.Shutdown(cfg.Timeouts.Drain)

	if status != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if shutdownErr := status.Shutdown(sctx); shutdownErr != nil {
			logger.Warn("status endpoint shutdown failed", "error", shutdownErr)
		}
		cancel()
	}

	mem0.ResetCache()

	return err
}

/*
credentialMap assembles the provider credentials from environment variables,
falling back to the config file for the endpoint and execution mode. Provider
blocks arrive as JSON strings, the same shape a hosting platform would hand
over.
*/
func credentialMap() map[string]any {
	creds := map[string]any{}

	set := func(key, env string) {
		if v := os.Getenv(env); v != "" {
			creds[key] = v
		}
	}

	set("server_endpoint", "MEM0_SERVER_ENDPOINT")
	set("api_key", "MEM0_API_KEY")
	set("async_mode", "MEM0_ASYNC_MODE")
	set("enable_graph", "MEM0_ENABLE_GRAPH")
	set("max_in_flight", "MEM0_MAX_IN_FLIGHT")
	set("local_llm_json", "MEM0_LLM_JSON")
	set("local_embedder_json", "MEM0_EMBEDDER_JSON")
	set("local_vector_db_json", "MEM0_VECTOR_DB_JSON")
	set("local_graph_db_json", "MEM0_GRAPH_DB_JSON")
	set("local_reranker_json", "MEM0_RERANKER_JSON")
	set("search_timeout", "MEM0_SEARCH_TIMEOUT")
	set("get_timeout", "MEM0_GET_TIMEOUT")
	set("get_all_timeout", "MEM0_GET_ALL_TIMEOUT")
	set("history_timeout", "MEM0_HISTORY_TIMEOUT")

	if _, ok := creds["async_mode"]; !ok {
		creds["async_mode"] = viper.GetBool("mem0.async_mode")
	}

	return creds
}

// disableTelemetry opts downstream SDKs out of phoning home before any
// client is constructed.
func disableTelemetry() {
	if !viper.GetBool("telemetry.disabled") {
		return
	}

	_ = os.Setenv("MEM0_TELEMETRY", "False")
	_ = os.Setenv("ANONYMIZED_TELEMETRY", "False")
}

var longServe = `
Serve the memory tool set over the Model Context Protocol on stdin/stdout.
Configuration comes from MEM0_* environment variables with fallbacks in the
config file; logging goes to stderr so stdout stays clean for the protocol.
`
