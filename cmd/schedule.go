package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-paylink/app/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run every reconciliation loop on its interval without the servers",
	Run:   runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	stopNotifications := app.serveNotifications()
	defer stopNotifications()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(app.jobs, nil)
	if err := sched.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start scheduler")
	}
	logrus.WithField("jobs", sched.Entries()).Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	select {
	case <-sched.Stop().Done():
	case <-stopCtx.Done():
		logrus.Warn("Scheduler did not stop in time")
	}

	logrus.Info("Scheduler stopped")
}
