package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start and end focus sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session",
	Long: `Starts a focus session that blocks the given apps until the goal is
reached. Apps are identified by package/bundle id, e.g.
com.valvesoftware.steam. With --beast the session cannot be given up.`,
	Example: "  presentd session start --goal 45 --block com.valvesoftware.steam --block com.hnc.Discord",
	RunE:    runSessionStart,
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel [session-id]",
	Short: "Cancel a session within 10 seconds of starting it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  sessionAction(func(m *usecase.SessionManager) sessionOp { return m.Cancel }),
}

var sessionGiveUpCmd = &cobra.Command{
	Use:   "giveup [session-id]",
	Short: "Give up the running session (no reward)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  sessionAction(func(m *usecase.SessionManager) sessionOp { return m.GiveUp }),
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete [session-id]",
	Short: "Complete a session whose goal was reached and collect the reward",
	Args:  cobra.MaximumNArgs(1),
	RunE:  sessionAction(func(m *usecase.SessionManager) sessionOp { return m.Complete }),
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session and its action history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

var (
	sessionName  string
	sessionGoal  int
	sessionApps  []string
	sessionBeast bool
)

func init() {
	sessionStartCmd.Flags().StringVarP(&sessionName, "name", "n", "", "Session name")
	sessionStartCmd.Flags().IntVarP(&sessionGoal, "goal", "g", 30, "Goal in minutes")
	sessionStartCmd.Flags().StringSliceVarP(&sessionApps, "block", "b", nil, "App to block (repeatable)")
	sessionStartCmd.Flags().BoolVar(&sessionBeast, "beast", false, "Beast mode: giving up is not allowed")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	sessionCmd.AddCommand(sessionGiveUpCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionShowCmd)
}

type sessionOp func(ctx context.Context, id string) (*domain.Session, error)

func runSessionStart(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		s, err := a.sessions.CreateAndStart(ctx, sessionName, sessionGoal, sessionApps, sessionBeast)
		if err != nil {
			return err
		}
		fmt.Printf("%s %q started: %d minutes, blocking %d app(s)\n",
			color.GreenString("●"), s.Name, s.GoalMinutes, len(s.BlockedPackages))
		fmt.Printf("Goal at %s. Cancel within %s with 'presentd session cancel'.\n",
			s.GoalAt().Format(time.Kitchen), usecase.CancelWindow)
		return nil
	})
}

func sessionAction(pick func(m *usecase.SessionManager) sessionOp) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			a.catchUp(ctx)
			id, err := resolveSessionID(ctx, a, args)
			if err != nil {
				return err
			}
			s, err := pick(a.sessions)(ctx, id)
			if err != nil {
				return err
			}
			printSessionLine(s)
			if s.EarnedXP > 0 {
				fmt.Printf("Earned %s and %d coins\n", color.YellowString("+%d XP", s.EarnedXP), s.EarnedCoins)
			}
			return nil
		})
	}
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		id, err := resolveSessionID(ctx, a, args)
		if err != nil {
			return err
		}
		s, err := a.sessions.Get(ctx, id)
		if err != nil {
			return err
		}
		printSessionLine(s)
		fmt.Printf("  id:       %s\n", s.ID)
		fmt.Printf("  goal:     %d min (beast mode: %t)\n", s.GoalMinutes, s.BeastMode)
		fmt.Printf("  blocking: %v\n", s.BlockedPackages)

		actions, err := a.sessions.Actions(ctx, s.ID)
		if err != nil {
			return err
		}
		fmt.Println("  history:")
		for _, act := range actions {
			fmt.Printf("    %s  %s\n", act.At.Format(time.DateTime), act.Action)
		}
		return nil
	})
}

// resolveSessionID returns the explicit id or the active session's.
func resolveSessionID(ctx context.Context, a *app, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	s, err := a.sessions.Active(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", fmt.Errorf("no active session")
	}
	return s.ID, nil
}

func printSessionLine(s *domain.Session) {
	fmt.Printf("%s %q %s\n", stateMarker(s.State), s.Name, s.State)
}

func stateMarker(state domain.SessionState) string {
	switch state {
	case domain.StateActive:
		return color.GreenString("●")
	case domain.StateGoalReached:
		return color.YellowString("★")
	case domain.StateCompleted:
		return color.GreenString("✓")
	case domain.StateGaveUp, domain.StateCanceled:
		return color.RedString("✗")
	default:
		return "○"
	}
}
