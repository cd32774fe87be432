package main

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

const debounce = 500 * time.Millisecond

func newWatchCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <deployment>",
		Short: "Rebuild and redeploy on source changes",
		Long: `Watch observes the deployment's source and dependency trees and runs a
build-and-deploy cycle after each burst of changes. Changes arriving
within the debounce window coalesce into one deploy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			dep, err := app.cfg.Build(args[0])
			if err != nil {
				return err
			}
			return watch(cmd.Context(), app, dep)
		},
	}
	return cmd
}

func watch(ctx context.Context, app *app, dep *deploy.Deployment) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := append([]string{dep.SourceDir}, dep.DependencyDirs...)
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	logger := log.Ctx(ctx).With().Str("deployment", dep.Name).Logger()
	logger.Info().Strs("dirs", dirs).Msg("watching for changes")

	// Deploy once up front so the watch loop always starts from a
	// known-deployed state.
	if err := deployOne(ctx, app, dep, false); err != nil {
		logger.Error().Err(err).Msg("initial deploy failed")
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug().Str("file", event.Name).Msg("change detected")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")
		case <-pending:
			if err := deployOne(ctx, app, dep, false); err != nil {
				logger.Error().Err(err).Msg("deploy failed, watching for the fix")
			}
		}
	}
}
