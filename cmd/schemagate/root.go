package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/artpar/schemagate/bootstrap"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schemagate",
	Short: "Derive API schema documents from a type catalog",
	Long: `schemagate derives named, de-duplicated schemas from a catalog of
type declarations and renders them as discovery, OpenAPI, Swagger and
JSON Schema documents.

Quick start:
  schemagate validate   # Check the catalog derives cleanly
  schemagate generate   # Write every document to ./schemas
  schemagate serve      # Serve documents over HTTP

History:
  schemagate snapshots list
  schemagate token      # Mint a bearer token for POST /snapshots`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "schemagate.yaml", "config file path")
}

// newApp builds an application for one-shot commands. Metrics go to a
// private registry and logs to stderr.
func newApp(logOutput io.Writer) (*bootstrap.App, error) {
	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Registerer: prometheus.NewRegistry(),
		LogOutput:  logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing: %w", err)
	}
	return a, nil
}
