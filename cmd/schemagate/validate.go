package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/artpar/schemagate/config"
	"github.com/artpar/schemagate/core/catalog"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and that every catalog root derives",
	Long: `Validate the schemagate configuration and catalog.

Checks:
  - Config file syntax and values
  - Catalog files parse and every referenced type is declared
  - Every root type of every API derives a schema

Examples:
  schemagate validate
  schemagate validate --config /etc/schemagate/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	m := marksFor(out)

	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(cfgFile); statErr == nil {
		cfg, err = config.Load(cfgFile)
	} else {
		fmt.Fprintf(out, "  - Config file not found, using environment\n")
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", m.cross)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", m.check)

	c, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		fmt.Fprintf(out, "  %s Catalog %s\n", m.cross, cfg.Catalog.Dir)
		return fmt.Errorf("catalog error: %w", err)
	}
	fmt.Fprintf(out, "  %s Catalog %s (%d APIs)\n", m.check, cfg.Catalog.Dir, len(c.APIs()))

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Shutdown()

	a.Schemas.Use(c)

	apis, err := a.Schemas.APIs()
	if err != nil {
		return err
	}
	failures, err := a.Schemas.Errors()
	if err != nil {
		return err
	}

	for _, api := range apis {
		key := api.Name + ":" + api.Version
		errs := failures[key]
		if len(errs) == 0 {
			fmt.Fprintf(out, "  %s %s (%d schemas)\n", m.check, key, len(api.Schemas))
			continue
		}
		fmt.Fprintf(out, "  %s %s\n", m.cross, key)
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		sort.Strings(msgs)
		for _, msg := range msgs {
			fmt.Fprintf(out, "      %s\n", msg)
		}
	}

	fmt.Fprintln(out)
	if len(failures) > 0 {
		return fmt.Errorf("%d APIs failed to derive", len(failures))
	}
	fmt.Fprintln(out, "Catalog is valid.")
	return nil
}
