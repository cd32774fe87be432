// Command optask provisions, tests and schedules operational task
// functions.
//
// Usage:
//
//	optask provision-role <deployment>   Create or update the execution role
//	optask deploy <deployment>           Build the artifact and deploy the function
//	optask test-local <deployment>       Run the task locally under the execution role
//	optask invoke <deployment>           Invoke the deployed function remotely
//	optask schedule <deployment>         Drive the schedule rule to active
//	optask status <deployment>           Re-derive remote state per stage
//	optask teardown <deployment>         Remove schedule, function and role
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "optask",
		Short: "Deploy and schedule operational task functions",
		Long: `optask manages the lifecycle of scheduled operational tasks: it
provisions the execution role, packages and deploys the function,
lets you run the task locally under the exact production identity,
and binds a time-based trigger - then tears it all down again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
			cmd.SetContext(log.Logger.WithContext(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "optask.yaml", "Deployment configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newProvisionRoleCmd(&configPath),
		newDeployCmd(&configPath),
		newTestLocalCmd(&configPath),
		newInvokeCmd(&configPath),
		newScheduleCmd(&configPath),
		newStatusCmd(&configPath),
		newTeardownCmd(&configPath),
		newWatchCmd(&configPath),
		newConfigCmd(&configPath),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("optask %s\n", version)
		},
	}
}
