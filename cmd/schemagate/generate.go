package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render every API document to files",
	Long: `Derive the catalog and write one file per API and format:

  <out>/<name>/<version>/<format>.json

When snapshots are enabled the written documents whose format is listed
in snapshots.formats (default: all) are recorded in the snapshot store;
unchanged documents are not stored twice.

Examples:
  schemagate generate
  schemagate generate --out build/schemas --format openapi --format jsonschema
  schemagate generate --api shop:v1`,
	RunE: runGenerate,
}

var (
	generateOut      string
	generateFormats  []string
	generateAPIs     []string
	generateSnapshot bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "schemas", "output directory")
	generateCmd.Flags().StringSliceVarP(&generateFormats, "format", "f", nil, "formats to render (default: all)")
	generateCmd.Flags().StringSliceVar(&generateAPIs, "api", nil, "APIs to render as name:version (default: all)")
	generateCmd.Flags().BoolVar(&generateSnapshot, "snapshot", true, "record snapshots when enabled in config")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	m := marksFor(out)

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.LoadCatalog(ctx); err != nil {
		return err
	}

	formats := generateFormats
	if len(formats) == 0 {
		formats = a.Exporters.Names()
	}

	apis, err := a.Schemas.APIs()
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(generateAPIs))
	for _, key := range generateAPIs {
		wanted[key] = true
	}

	var rendered []renderedDoc
	for _, api := range apis {
		key := api.Name + ":" + api.Version
		if len(wanted) > 0 && !wanted[key] {
			continue
		}
		delete(wanted, key)

		dir := filepath.Join(generateOut, api.Name, api.Version)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}

		for _, format := range formats {
			doc, err := a.Schemas.Render(ctx, api.Name, api.Version, format)
			if err != nil {
				fmt.Fprintf(out, "  %s %s %s\n", m.cross, key, format)
				return err
			}
			path := filepath.Join(dir, format+".json")
			if err := os.WriteFile(path, doc.Data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(out, "  %s %s\n", m.check, path)
			rendered = append(rendered, renderedDoc{api.Name, api.Version, format})
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for key := range wanted {
			missing = append(missing, key)
		}
		return fmt.Errorf("unknown api: %s", strings.Join(missing, ", "))
	}

	fmt.Fprintf(out, "\nWrote %d documents to %s\n", len(rendered), generateOut)

	cfg := a.Config.Get()
	if !generateSnapshot || !cfg.Snapshots.Enabled {
		return nil
	}

	recorded := make(map[string]bool, len(cfg.Snapshots.Formats))
	for _, f := range cfg.Snapshots.Formats {
		recorded[f] = true
	}

	stored, unchanged := 0, 0
	for _, doc := range rendered {
		if len(recorded) > 0 && !recorded[doc.format] {
			continue
		}
		res, err := a.Schemas.Snapshot(ctx, doc.name, doc.version, doc.format)
		if err != nil {
			return err
		}
		if res.Stored {
			stored++
		} else {
			unchanged++
		}
	}
	fmt.Fprintf(out, "Recorded %d new snapshots (%d unchanged)\n", stored, unchanged)
	return nil
}

type renderedDoc struct {
	name, version, format string
}
