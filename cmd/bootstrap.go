package cmd

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/hub"
	"github.com/vibast-solutions/ms-go-paylink/app/metrics"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
	"github.com/vibast-solutions/ms-go-paylink/app/scheduler"
	"github.com/vibast-solutions/ms-go-paylink/app/service"
	"github.com/vibast-solutions/ms-go-paylink/config"

	_ "github.com/go-sql-driver/mysql"
)

// application is the fully wired process: stores, remote clients, the five loops and the hub
// they publish to.
type application struct {
	cfg          *config.Config
	db           *sql.DB
	hub          *service.PaymentHub
	metrics      *metrics.Metrics
	payments     *service.PaymentService
	refundOrders *service.RefundOrderService
	notification *service.NotificationJob
	jobs         []scheduler.Job
}

func (a *application) job(name string) scheduler.Job {
	for _, j := range a.jobs {
		if j.Name() == name {
			return j
		}
	}
	return nil
}

// serveNotifications lets the status loops hand a payment to the webhook job as soon as it
// reaches an outcome. The returned stop func waits for in-flight deliveries.
func (a *application) serveNotifications() func() {
	ctx, cancel := context.WithCancel(context.Background())
	wait, err := a.notification.Start(ctx)
	if err != nil {
		cancel()
		logrus.WithError(err).Error("Notification job not started")
		return func() {}
	}
	return func() {
		cancel()
		wait()
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustCreateApplication() (*application, func()) {
	cfg := mustLoadConfig()

	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		logrus.WithError(err).WithField("timezone", cfg.App.Timezone).Fatal("Failed to load timezone")
	}

	db := mustOpenDB(cfg)

	paymentRepo := repository.NewPaymentRepository(db)
	refundOrderRepo := repository.NewRefundOrderRepository(db)
	panErrorRepo := repository.NewPanErrorRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	gateway := provider.NewPayLinkClient(provider.PayLinkConfig{
		URL:         cfg.PayLink.URL,
		SignKey:     cfg.PayLink.SignKey,
		HTTPTimeout: cfg.PayLink.HTTPTimeout,
	})
	settlement, err := provider.NewSettlementClient(provider.SettlementConfig{
		URL:                 cfg.PostTransaction.URL,
		BasicUsername:       cfg.PostTransaction.BasicUsername,
		BasicPassword:       cfg.PostTransaction.BasicPassword,
		CertificatePath:     cfg.PostTransaction.CertificatePath,
		CertificatePassword: cfg.PostTransaction.CertificatePassword,
		TerminalID:          cfg.PostTransaction.TerminalID,
		InsecureSkipVerify:  cfg.PostTransaction.InsecureSkipVerify,
		HTTPTimeout:         cfg.PostTransaction.HTTPTimeout,
		Location:            location,
	})
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to initialize settlement client")
	}
	notifier := provider.NewWebhookNotifier(provider.NotifierConfig{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scope:        cfg.Auth.Scope,
		HTTPTimeout:  cfg.Notification.HTTPTimeout,
	})
	mailer := provider.NewSMTPMailer(provider.MailerConfig{
		Host:         cfg.Email.SMTPHost,
		Port:         cfg.Email.SMTPPort,
		Username:     cfg.Email.Username,
		Password:     cfg.Email.Password,
		From:         cfg.Email.From,
		CompanyName:  cfg.Email.CompanyName,
		CompanyPhone: cfg.Email.CompanyPhone,
	})

	paymentHub := hub.New[*entity.Payment](cfg.Hub.SubscriberBuffer)
	jobMetrics := metrics.New()
	jobMetrics.RegisterHub(paymentHub)

	deps := service.Deps{
		Payments: paymentRepo,
		Events:   eventRepo,
		Hub:      paymentHub,
		Observer: jobMetrics,
	}

	notificationJob := service.NewNotificationJob(deps, cfg.Notification, notifier, location)
	gatewayJob := service.NewGatewayStatusJob(deps, cfg.StatusUpdate, cfg.PayLink.SessionExpiration, gateway, panErrorRepo, notificationJob)
	settlementJob := service.NewSettlementStatusJob(deps, cfg.StatusUpdate, settlement, notificationJob)
	refundJob := service.NewRefundStatusJob(deps, cfg.StatusUpdate, gateway, cfg.Notification.OnPaymentRefund)
	payerEmailJob := service.NewPayerEmailJob(refundOrderRepo, mailer, cfg.Notification.RetryConfig, jobMetrics, nil, nil)

	paymentService := service.NewPaymentService(deps, gateway, cfg.Notification, service.Jobs{
		Gateway:      gatewayJob,
		Settlement:   settlementJob,
		Refund:       refundJob,
		Notification: notificationJob,
	})

	refundOrderService := service.NewRefundOrderService(refundOrderRepo, paymentRepo, payerEmailJob, nil, nil)

	app := &application{
		cfg:          cfg,
		db:           db,
		hub:          paymentHub,
		metrics:      jobMetrics,
		payments:     paymentService,
		refundOrders: refundOrderService,
		notification: notificationJob,
		jobs:         []scheduler.Job{gatewayJob, settlementJob, refundJob, notificationJob, payerEmailJob},
	}

	cleanup := func() {
		paymentHub.Close()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return app, cleanup
}
