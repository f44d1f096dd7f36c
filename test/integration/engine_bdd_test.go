//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/daemon"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
	"github.com/KanishkKundu05/bepresent-android-sub000/test/fixtures"
)

var _ = Describe("Enforcement engine", func() {
	var (
		tmpDir string
		app    *fixtures.FakeApp
		h      *harness
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "presentd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		app = fixtures.NewFakeApp(tmpDir)
		h = newHarness(filepath.Join(tmpDir, "data"), app.Name)
		ctx = context.Background()
	})

	AfterEach(func() {
		app.Stop()
		h.close()
		os.RemoveAll(tmpDir)
	})

	Describe("Focus sessions", func() {
		Context("when a session runs to completion", func() {
			It("should block until completed, pay the reward and sync", func() {
				s, err := h.sessions.CreateAndStart(ctx, "Deep work", 30, []string{fakeGamePkg}, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.State).To(Equal(domain.StateActive))
				Expect(h.monitor.Running()).To(BeTrue())
				Expect(h.wake.Pending()).To(ContainElement(domain.GoalWakeKey(s.ID).String()))

				s, err = h.sessions.GoalReached(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.State).To(Equal(domain.StateGoalReached))
				Expect(h.monitor.Running()).To(BeTrue(), "goal reached still blocks")

				s, err = h.sessions.Complete(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.State).To(Equal(domain.StateCompleted))
				Expect(s.EarnedXP).To(Equal(usecase.RewardFor(30).XP))
				Expect(h.monitor.Running()).To(BeFalse())

				totals, err := h.store.Totals(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(totals).To(Equal(usecase.RewardFor(30)))

				actions, err := h.sessions.Actions(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(actions).To(HaveLen(3))

				Eventually(h.convex.received, 5*time.Second, 20*time.Millisecond).
					Should(ContainElement("stats:syncSession"))
				Eventually(func() int {
					n, _ := h.store.CountPending(ctx)
					return n
				}, 5*time.Second, 20*time.Millisecond).Should(BeZero())
			})
		})

		Context("when beast mode is on", func() {
			It("should refuse to give up but allow an early cancel", func() {
				s, err := h.sessions.CreateAndStart(ctx, "", 60, []string{fakeGamePkg}, true)
				Expect(err).NotTo(HaveOccurred())

				_, err = h.sessions.GiveUp(ctx, s.ID)
				Expect(err).To(MatchError(usecase.ErrBeastMode))

				s, err = h.sessions.Cancel(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.State).To(Equal(domain.StateCanceled))
				Expect(h.wake.Pending()).To(BeEmpty())

				n, err := h.store.CountPending(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeZero(), "canceled sessions are not synced")
			})
		})

		Context("when another session is active", func() {
			It("should reject a second start", func() {
				_, err := h.sessions.CreateAndStart(ctx, "one", 5, []string{fakeGamePkg}, false)
				Expect(err).NotTo(HaveOccurred())
				_, err = h.sessions.CreateAndStart(ctx, "two", 5, []string{fakeGamePkg}, false)
				Expect(err).To(MatchError(usecase.ErrSessionAlreadyActive))
			})
		})
	})

	Describe("Shielding", func() {
		Context("when a blocked app is in the foreground", func() {
			It("should kill it and tell the user", func() {
				Expect(app.Start()).To(Succeed())
				Eventually(func() bool { return app.PID() > 0 }).Should(BeTrue())

				h.observer.set(fakeGamePkg)
				_, err := h.sessions.CreateAndStart(ctx, "Deep work", 30, []string{fakeGamePkg}, false)
				Expect(err).NotTo(HaveOccurred())

				Eventually(app.Exited, 5*time.Second, 20*time.Millisecond).Should(BeTrue())
				Eventually(h.notifier.titles, time.Second).Should(ContainElement("Stay focused"))
			})
		})

		Context("when the app is allowed", func() {
			It("should leave it alone", func() {
				Expect(app.Start()).To(Succeed())
				h.observer.set(fakeGamePkg)

				_, err := h.sessions.CreateAndStart(ctx, "Deep work", 30, []string{"com.valvesoftware.steam"}, false)
				Expect(err).NotTo(HaveOccurred())

				Consistently(app.Exited, 200*time.Millisecond, 20*time.Millisecond).Should(BeFalse())
			})
		})
	})

	Describe("Intentions", func() {
		It("should unblock for one window and reblock on expiry", func() {
			in, err := h.intentions.Create(ctx, usecase.IntentionInput{
				PackageName: fakeGamePkg, AllowedOpensPerDay: 2, TimePerOpenMinutes: 1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(in.AppName).NotTo(BeEmpty())
			Expect(h.monitor.Running()).To(BeTrue())

			h.observer.set(fakeGamePkg)
			req := h.monitor.Tick(ctx)
			Expect(req).NotTo(BeNil())
			Expect(req.ShieldType).To(Equal(domain.ShieldIntention))

			in, err = h.intentions.OpenApp(ctx, in.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.CurrentlyOpen).To(BeTrue())
			Expect(h.wake.Pending()).To(ConsistOf(
				domain.WarningWakeKey(in.ID).String(),
				domain.ExpiryWakeKey(in.ID).String(),
			))
			Expect(h.monitor.Tick(ctx)).To(BeNil(), "open app is allowed")

			h.intentions.Reblocker().OnExpiry(ctx, in.ID, in.OpenedAt)
			in, err = h.intentions.Get(ctx, in.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.CurrentlyOpen).To(BeFalse())
			Expect(in.TotalOpensToday).To(Equal(1))
			Expect(h.wake.Pending()).To(BeEmpty())
			Expect(h.notifier.titles()).To(ContainElement("Time's up"))
		})

		It("should reblock windows that expired while nothing was running", func() {
			in, err := h.intentions.Create(ctx, usecase.IntentionInput{
				PackageName: fakeGamePkg, AllowedOpensPerDay: 2, TimePerOpenMinutes: 5,
			})
			Expect(err).NotTo(HaveOccurred())

			stale := time.Now().Add(-10 * time.Minute)
			in.CurrentlyOpen = true
			in.OpenedAt = &stale
			in.TotalOpensToday = 1
			Expect(h.store.SaveIntention(ctx, *in)).To(Succeed())

			Expect(h.intentions.Recover(ctx)).To(Succeed())

			in, err = h.intentions.Get(ctx, in.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.CurrentlyOpen).To(BeFalse())
			Expect(in.OpenedAt).To(BeNil())
		})

		It("should reject a second intention for the same app", func() {
			_, err := h.intentions.Create(ctx, usecase.IntentionInput{PackageName: fakeGamePkg, AllowedOpensPerDay: 1, TimePerOpenMinutes: 5})
			Expect(err).NotTo(HaveOccurred())
			_, err = h.intentions.Create(ctx, usecase.IntentionInput{PackageName: fakeGamePkg, AllowedOpensPerDay: 3, TimePerOpenMinutes: 5})
			Expect(err).To(MatchError(domain.ErrDuplicatePackage))
		})
	})

	Describe("Daily reset", func() {
		It("should settle streaks once per day and upload a summary", func() {
			Expect(h.store.SetStreakFreeze(ctx, domain.StreakFreeze{})).To(Succeed())
			within, err := h.intentions.Create(ctx, usecase.IntentionInput{PackageName: fakeGamePkg, AllowedOpensPerDay: 2, TimePerOpenMinutes: 5})
			Expect(err).NotTo(HaveOccurred())
			over, err := h.intentions.Create(ctx, usecase.IntentionInput{PackageName: "com.hnc.Discord", AllowedOpensPerDay: 1, TimePerOpenMinutes: 5})
			Expect(err).NotTo(HaveOccurred())

			// Pretend both were last reset yesterday.
			for _, in := range []*domain.Intention{within, over} {
				in.LastResetDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
				in.Streak = 4
			}
			within.TotalOpensToday = 2
			over.TotalOpensToday = 3
			Expect(h.store.SaveIntention(ctx, *within)).To(Succeed())
			Expect(h.store.SaveIntention(ctx, *over)).To(Succeed())

			report, err := h.reset.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Processed).To(Equal(2))
			Expect(report.StreaksBroken).To(Equal(1))

			got, err := h.intentions.Get(ctx, within.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Streak).To(Equal(5))
			Expect(got.TotalOpensToday).To(BeZero())
			got, err = h.intentions.Get(ctx, over.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Streak).To(BeZero())

			again, err := h.reset.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Processed).To(BeZero())
			Expect(again.Skipped).To(Equal(2))

			Eventually(h.convex.received, 5*time.Second, 20*time.Millisecond).
				Should(ContainElements("stats:syncDailyStats", "stats:syncIntentions"))
		})

		It("should spend a streak freeze instead of breaking a streak", func() {
			Expect(h.store.SetStreakFreeze(ctx, domain.StreakFreeze{Available: true})).To(Succeed())
			in, err := h.intentions.Create(ctx, usecase.IntentionInput{PackageName: fakeGamePkg, AllowedOpensPerDay: 1, TimePerOpenMinutes: 5})
			Expect(err).NotTo(HaveOccurred())
			in.LastResetDate = ""
			in.Streak = 7
			in.TotalOpensToday = 2
			Expect(h.store.SaveIntention(ctx, *in)).To(Succeed())

			report, err := h.reset.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.FreezeConsumed).To(BeTrue())

			got, err := h.intentions.Get(ctx, in.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Streak).To(Equal(8))

			freeze, err := h.store.StreakFreeze(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(freeze.Available).To(BeFalse())
		})
	})

	Describe("Daemon", func() {
		It("should restore state, heartbeat and stop cleanly", func() {
			s, err := h.sessions.CreateAndStart(ctx, "Deep work", 30, []string{fakeGamePkg}, false)
			Expect(err).NotTo(HaveOccurred())
			h.monitor.Stop()
			h.wake.Cancel(domain.GoalWakeKey(s.ID))

			launcher := daemon.NewLauncherWithDeps(daemon.LauncherConfig{
				LockPath:   filepath.Join(tmpDir, "presentd.pid"),
				StaleAfter: time.Second,
			}, h.store, func(args ...string) (int, error) { return 0, errors.New("spawn disabled") },
				func(pid int) error { return nil }, h.logger)
			Expect(launcher.Alive(ctx)).To(BeFalse())

			runCtx, cancel := context.WithCancel(ctx)
			engine := h.engine()
			done := make(chan error, 1)
			go func() { done <- engine.Run(runCtx) }()

			Eventually(func() bool { return launcher.Alive(ctx) }, 2*time.Second, 20*time.Millisecond).Should(BeTrue())
			Eventually(h.monitor.Running, time.Second, 10*time.Millisecond).Should(BeTrue())
			Eventually(h.wake.Pending, time.Second, 10*time.Millisecond).
				Should(ContainElement(domain.GoalWakeKey(s.ID).String()))

			engine.Kick()
			engine.Kick()

			cancel()
			Eventually(done, 5*time.Second).Should(Receive(MatchError(context.Canceled)))
			Expect(h.monitor.Running()).To(BeFalse())
			Expect(h.wake.Pending()).To(BeEmpty())
		})
	})
})
