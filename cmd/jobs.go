package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/scheduler"
)

var (
	workerMode bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run payment status update loops",
}

var statusGatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Poll the card gateway for payments still in progress",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(string(entity.JobGatewayStatus))
	},
}

var statusSettlementCmd = &cobra.Command{
	Use:   "settlement",
	Short: "Create and track settlement actions for paid payments",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(string(entity.JobSettlementStatus))
	},
}

var statusRefundCmd = &cobra.Command{
	Use:   "refund",
	Short: "Poll the card gateway for started refunds",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(string(entity.JobRefundStatus))
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run notification loops",
}

var notifyWebhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Deliver merchant webhooks for payments with an outcome",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(string(entity.JobNotification))
	},
}

var notifyPayerEmailCmd = &cobra.Command{
	Use:   "payer-email",
	Short: "E-mail payers about their refund orders",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(string(entity.JobPayerEmail))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(notifyCmd)
	statusCmd.AddCommand(statusGatewayCmd)
	statusCmd.AddCommand(statusSettlementCmd)
	statusCmd.AddCommand(statusRefundCmd)
	notifyCmd.AddCommand(notifyWebhookCmd)
	notifyCmd.AddCommand(notifyPayerEmailCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(name string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	job := app.job(name)
	if job == nil {
		logrus.WithField("job", name).Fatal("unknown job")
	}

	stopNotifications := app.serveNotifications()
	defer stopNotifications()

	if workerMode {
		runWorker(job)
		return
	}

	runJob(context.Background(), job)
}

func runWorker(job scheduler.Job) {
	interval := job.Interval()
	if interval <= 0 {
		logrus.WithField("job", job.Name()).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(ctx, job)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", job.Name()).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(ctx, job)
		}
	}
}

func runJob(ctx context.Context, job scheduler.Job) {
	scheduler.RunJob(ctx, job, logrus.StandardLogger())
}
