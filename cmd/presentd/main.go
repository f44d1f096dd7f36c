// Package main is the CLI entry point for presentd.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/daemon"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "presentd",
	Short: "Focus sessions and app intentions for your desktop",
	Long: `presentd blocks distracting apps while a focus session runs and
limits how often you open the apps you set intentions for.

A background daemon watches the foreground app and closes blocked ones.
Every other command talks to the same encrypted local store and starts
the daemon when there is something to enforce.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long:  `Starts the daemon in the background unless one is already running.`,
	RunE:  runStart,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the enforcement daemon in the foreground",
	Long: `Runs the foreground monitor, wake-up timers, daily reset and sync
queue until interrupted. 'presentd start' runs this detached.`,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dataDir    string
	verbose    bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.presentd, /var/lib/presentd as root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(intentionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(versionCmd)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runStart(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if a.launcher.Alive(ctx) {
			pid, _ := a.launcher.PID()
			fmt.Printf("Daemon already running (pid %d)\n", pid)
			return nil
		}
		pid, err := daemon.StartDetached("--data-dir", a.mode.DataDir)
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Printf("Daemon started (pid %d)\n", pid)
		fmt.Printf("Logs: %s\n", a.mode.LogPath)

		if done, err := a.store.OnboardingCompleted(ctx); err == nil && !done {
			fmt.Println("\nNext steps:")
			fmt.Println("  presentd session start --goal 30 --block <app>   block apps until the goal")
			fmt.Println("  presentd intention add --package <app> --opens 3 limit daily opens")
			fmt.Println("  presentd status                                   see what is enforced")
			if err := a.store.SetOnboardingCompleted(ctx, true); err != nil {
				a.logger.Warn("failed to record onboarding", zap.Error(err))
			}
		}
		return nil
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	release, err := daemon.AcquireLock(a.launcher.LockPath())
	if err != nil {
		return err
	}
	defer release()

	logger := a.logger
	logger.Info("daemon starting",
		zap.String("version", Version),
		zap.String("mode", a.mode.Mode.String()),
		zap.String("data_dir", a.mode.DataDir),
		zap.Int("pid", os.Getpid()))

	ctx, cancel := signalContext()
	defer cancel()

	engine := a.engine()

	// SIGHUP from CLI commands asks for an immediate reconcile.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				engine.Kick()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics endpoint listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("daemon stopped")
		return nil
	}
	return err
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := sonic.Marshal(versionInfo{Version: Version, Commit: Commit, BuildTime: BuildTime})
		fmt.Println(string(out))
	} else {
		fmt.Printf("presentd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
