package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/schemagate/core/formatter"
	"github.com/artpar/schemagate/domain/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect recorded documents",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Example: `  schemagate snapshots list
  schemagate snapshots list --api shop:v1 --format openapi --limit 5
  schemagate snapshots list -o json`,
	RunE: runSnapshotsList,
}

var (
	snapshotsAPI    string
	snapshotsFormat string
	snapshotsLimit  int
	snapshotsOutput string
)

var snapshotResource = formatter.Resource{
	Kind:    "snapshots",
	Columns: []string{"id", "api", "format", "digest", "size", "createdAt"},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd)

	snapshotsListCmd.Flags().StringVar(&snapshotsAPI, "api", "", "filter by API (name:version)")
	snapshotsListCmd.Flags().StringVar(&snapshotsFormat, "format", "", "filter by format")
	snapshotsListCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 20, "maximum number of snapshots")
	snapshotsListCmd.Flags().StringVarP(&snapshotsOutput, "output", "o", "table",
		"output format ("+strings.Join(formatter.List(), ", ")+")")
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	f, ok := formatter.Get(snapshotsOutput)
	if !ok {
		return fmt.Errorf("unknown output format %q (available: %s)",
			snapshotsOutput, strings.Join(formatter.List(), ", "))
	}

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Shutdown()

	snaps, err := a.Schemas.Snapshots(cmd.Context(), snapshot.Filter{
		API:    snapshotsAPI,
		Format: snapshotsFormat,
		Limit:  snapshotsLimit,
	})
	if err != nil {
		f.FormatError(cmd.ErrOrStderr(), err)
		return err
	}

	records := make([]map[string]any, len(snaps))
	for i, s := range snaps {
		digest := s.Digest
		if snapshotsOutput == "table" && len(digest) > 12 {
			digest = digest[:12]
		}
		records[i] = map[string]any{
			"id":        s.ID,
			"api":       s.API,
			"format":    s.Format,
			"digest":    digest,
			"size":      s.Size,
			"createdAt": s.CreatedAt,
		}
	}

	return f.FormatList(cmd.OutOrStdout(), snapshotResource, records, formatter.FormatOptions{})
}
