package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/schemagate/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve schema documents over HTTP",
	Long: `Start the schemagate HTTP server.

The server will:
  - Load configuration from schemagate.yaml (or --config)
  - Or load configuration from SCHEMAGATE_* environment variables
  - Derive every API declared in the catalog
  - Rebuild the catalog when a catalog file or the config file changes,
    or on SIGHUP

Endpoints:
  /apis                                 API summaries
  /apis/{name}/{version}/{format}       Rendered documents
  /apis/{name}/{version}/openapi.json   OpenAPI with this server as origin
  /snapshots                            Document history (when enabled)
  /swagger/                             Swagger UI
  /metrics                              Prometheus metrics

Examples:
  schemagate serve
  schemagate serve --config /etc/schemagate/config.yaml
  SCHEMAGATE_CATALOG_DIR=./apis schemagate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
	}

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return a.Run()
}
