package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newInvokeCmd(configPath *string) *cobra.Command {
	var event string

	cmd := &cobra.Command{
		Use:   "invoke <deployment>",
		Short: "Invoke the deployed function and print its result",
		Long: `Invoke runs the deployed function synchronously, remotely. Unlike
test-local this exercises the real deployed artifact under the real
execution role, so it is the final check after a deploy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			dep, err := app.cfg.Build(args[0])
			if err != nil {
				return err
			}
			if event != "" && !json.Valid([]byte(event)) {
				return fmt.Errorf("--event is not valid JSON")
			}

			out, err := app.functions.Invoke(ctx, dep.Function.Name, []byte(event))
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "JSON event payload")
	return cmd
}
