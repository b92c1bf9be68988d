package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/env"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trial",
		Short: "Trial and subscription maintenance jobs, meant to run from cron",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env.SetupEnvFile()
		},
	}

	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(warningsCmd())
	rootCmd.AddCommand(allCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(fn func(ctx context.Context, a *appctx.App) error) error {
	a, err := appctx.New(config.Load())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "End trials whose end date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *appctx.App) error {
				n, err := a.Trial.Expire(ctx)
				if err != nil {
					return err
				}
				return printJSON(map[string]int{"expired": n})
			})
		},
	}
}

func warningsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warnings",
		Short: "Send reminders to users 7, 3 and 1 days before their trial ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *appctx.App) error {
				n, err := a.Trial.Warnings(ctx)
				if err != nil {
					return err
				}
				return printJSON(map[string]int{"warnings": n})
			})
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Expire trials, then send reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *appctx.App) error {
				res, err := a.Trial.All(ctx)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [user-id...]",
		Short: "Pull the authoritative subscription state for the given users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *appctx.App) error {
				failed := 0
				for _, id := range args {
					if err := a.Billing.Reconcile(ctx, id); err != nil {
						fmt.Fprintf(os.Stderr, "reconcile %s: %v\n", id, err)
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d reconciliations failed", failed, len(args))
				}
				return nil
			})
		},
	}
}
