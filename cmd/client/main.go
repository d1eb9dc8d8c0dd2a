package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/lifekeeper/internal/client/cli"
	"github.com/dmitrijs2005/lifekeeper/internal/client/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifekeeper",
		Short:         "Offline-first terminal client for tasks, habits, moods and journals",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: withApp(func(ctx context.Context, app *cli.App, _ []string) error {
			return app.Run(ctx)
		}),
	}

	// Values are read by config.LoadConfig from os.Args; cobra only has to
	// accept them and list them in help.
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to JSON config file, defaults to $LIFEKEEPER_CONFIG")
	pf.StringP("server", "a", "", "base URL of the REST API")
	pf.StringP("db", "d", "", "path of the local database")
	pf.IntP("interval", "i", 0, "online check interval in seconds")

	root.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Log in, push queued changes and refetch every domain",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *cli.App, _ []string) error {
				defer app.Close()
				return app.SyncOnce(ctx)
			}),
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Upload a snapshot of local data to S3",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *cli.App, _ []string) error {
				defer app.Close()
				return app.Backup(ctx)
			}),
		},
		&cobra.Command{
			Use:   "backups",
			Short: "List stored snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *cli.App, _ []string) error {
				defer app.Close()
				return app.Backups(ctx)
			}),
		},
		&cobra.Command{
			Use:   "restore [key]",
			Short: "Replace local data with a snapshot, the newest by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
				defer app.Close()
				key := ""
				if len(args) == 1 {
					key = args[0]
				}
				return app.Restore(ctx, key)
			}),
		},
	)

	return root
}

func withApp(fn func(ctx context.Context, app *cli.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		app, err := cli.NewApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), app, args)
	}
}
