package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/infra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload sessions and stats to your account",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Deliver queued items now",
	RunE:  runSyncNow,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List queued items",
	RunE:  runSyncStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Run today's intention reset if it has not run yet",
	RunE:  runReset,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the account token used for sync",
	Long: `Stores the bearer token used to upload to your account.
Without --token the token is read from stdin.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the account token; queued items stay until next login",
	RunE:  runLogout,
}

var loginToken string

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Account token")

	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if !a.remote.Authenticated() {
			return fmt.Errorf("not signed in: set PRESENTD_SYNC_CONVEX_URL and run 'presentd login'")
		}
		report, err := a.syncer.Drain(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Delivered %d, failed %d, evicted %d\n", report.Delivered, report.Failed, report.Evicted)
		return nil
	})
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		items, err := a.syncer.Pending(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}
		for _, it := range items {
			retries := fmt.Sprintf("%d", it.RetryCount)
			if it.RetryCount > 0 {
				retries = color.YellowString(retries)
			}
			fmt.Printf("  #%-5d %-11s queued %s  retries %s\n",
				it.ID, it.Type, it.CreatedAt.Format(time.DateTime), retries)
		}
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		report, err := a.reset.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Reset for %s: %d processed, %d already done, %d streak(s) broken\n",
			report.Date, report.Processed, report.Skipped, report.StreaksBroken)
		if report.FreezeConsumed {
			fmt.Println("A streak freeze was used.")
		}
		if report.FreezeGranted {
			fmt.Println(color.GreenString("New streak freeze granted."))
		}
		return nil
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(loginToken)
	if token == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.store.SetSecret(infra.SecretRemoteToken, token); err != nil {
			return err
		}
		fmt.Println("Signed in")
		a.syncer.RequestDrain()
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.store.DeleteSecret(infra.SecretRemoteToken); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	})
}
