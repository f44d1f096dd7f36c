package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, session, intention and sync status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		fmt.Println(color.CyanString("\n=== presentd Status ==="))

		if a.launcher.Alive(ctx) {
			pid, _ := a.launcher.PID()
			fmt.Printf("Daemon:      %s (pid %d)\n", color.GreenString("running"), pid)
		} else {
			fmt.Printf("Daemon:      %s\n", color.RedString("not running"))
		}
		if beat, err := a.store.Heartbeat(ctx); err == nil && !beat.IsZero() {
			fmt.Printf("Heartbeat:   %s ago\n", time.Since(beat).Round(time.Second))
		}
		fmt.Printf("Mode:        %s\n", a.mode.Mode)
		fmt.Printf("Data dir:    %s\n", a.mode.DataDir)

		fmt.Println(color.CyanString("\nSession"))
		s, err := a.sessions.Active(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Println("  none")
		} else {
			printSessionLine(s)
			if s.StartedAt != nil {
				elapsed := time.Since(*s.StartedAt).Round(time.Second)
				fmt.Printf("  %s of %d min, blocking %v\n", elapsed, s.GoalMinutes, s.BlockedPackages)
			}
			if s.State == domain.StateGoalReached {
				fmt.Println("  Goal reached: run 'presentd session complete' to collect your reward.")
			}
		}

		fmt.Println(color.CyanString("\nIntentions"))
		list, err := a.intentions.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("  none")
		}
		for _, in := range list {
			printIntention(in)
		}

		fmt.Println(color.CyanString("\nProgress"))
		totals, err := a.store.Totals(ctx)
		if err != nil {
			return err
		}
		freeze, err := a.store.StreakFreeze(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("  XP: %d  Coins: %d\n", totals.XP, totals.Coins)
		freezeStatus := color.HiBlackString("used")
		if freeze.Available {
			freezeStatus = color.GreenString("available")
		}
		fmt.Printf("  Streak freeze: %s\n", freezeStatus)

		fmt.Println(color.CyanString("\nSync"))
		pending, err := a.syncer.Pending(ctx)
		if err != nil {
			return err
		}
		auth := color.RedString("signed out")
		if a.remote.Authenticated() {
			auth = color.GreenString("signed in")
		}
		fmt.Printf("  %s, %d item(s) pending\n", auth, len(pending))
		fmt.Println("=======================")
		return nil
	})
}
