package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/config"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the deployment configuration",
	}
	cmd.AddCommand(newConfigSchemaCmd(), newConfigCheckCmd(configPath))
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Emit the JSON Schema of the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reflector := &jsonschema.Reflector{ExpandedStruct: true}
			schema := reflector.Reflect(&config.Config{})
			out, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newConfigCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file without touching anything remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d deployment(s) valid\n", *configPath, len(cfg.Deployments))
			return nil
		},
	}
}
