package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-paylink/app/controller"
	paylinkgrpc "github.com/vibast-solutions/ms-go-paylink/app/grpc"
	"github.com/vibast-solutions/ms-go-paylink/app/metrics"
	"github.com/vibast-solutions/ms-go-paylink/app/scheduler"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
	"github.com/vibast-solutions/ms-go-paylink/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start HTTP (Echo) and gRPC servers together with the reconciliation scheduler.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()
	cfg := app.cfg

	stopNotifications := app.serveNotifications()

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var sched *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		sched = scheduler.New(app.jobs, nil)
		if err := sched.Start(jobsCtx); err != nil {
			logrus.WithError(err).Fatal("Failed to start scheduler")
		}
	} else {
		logrus.Info("Jobs disabled, scheduler not started")
	}

	paymentController := controller.NewPaymentController(app.payments, cfg.SSE.Expiration)
	refundOrderController := controller.NewRefundOrderController(app.refundOrders)
	grpcReconcilerServer := paylinkgrpc.NewServer(app.payments)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(paymentController, refundOrderController, app.metrics, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, healthSrv, lis := setupGRPCServer(cfg, grpcReconcilerServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	healthSrv.Shutdown()
	// Ends open SSE and WatchPayment streams so the servers can drain.
	app.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logrus.Warn("Scheduler did not stop in time")
		}
	}
	cancelJobs()
	stopNotifications()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	paymentController *controller.PaymentController,
	refundOrderController *controller.RefundOrderController,
	jobMetrics *metrics.Metrics,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	internal := []echo.MiddlewareFunc{requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName)}

	e.GET("/health", paymentController.Health, internal...)
	e.GET("/metrics", echo.WrapHandler(jobMetrics.Handler()))

	payments := e.Group("/payments", internal...)
	payments.GET("/:id", paymentController.GetPayment)
	payments.PUT("/:id/start", paymentController.StartPayment)
	payments.POST("/:id/refund", paymentController.RefundPayment)
	payments.PATCH("/:id/details", paymentController.ChangeDetails)
	payments.POST("/:id/reconcile", paymentController.ReconcilePayment)
	payments.GET("/:id/sse", paymentController.StreamPayment)

	refundOrders := e.Group("/refund-orders", internal...)
	refundOrders.POST("", refundOrderController.CreateRefundOrder)
	refundOrders.GET("/:id", refundOrderController.GetRefundOrder)
	refundOrders.GET("/numb/:numb", refundOrderController.GetRefundOrderByNumb)
	refundOrders.PUT("/numb/:numb/status", refundOrderController.ChangeRefundOrderStatus)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	reconcilerServer *paylinkgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	internalAccess := internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName)
	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			paylinkgrpc.RecoveryInterceptor(),
			paylinkgrpc.ExceptHealth(paylinkgrpc.RequestIDInterceptor()),
			paylinkgrpc.LoggingInterceptor(),
			paylinkgrpc.ExceptHealth(internalAccess),
		),
		grpc.ChainStreamInterceptor(
			paylinkgrpc.RecoveryStreamInterceptor(),
			paylinkgrpc.ExceptHealthStream(paylinkgrpc.RequestIDStreamInterceptor()),
			paylinkgrpc.LoggingStreamInterceptor(),
			paylinkgrpc.ExceptHealthStream(paylinkgrpc.StreamFromUnary(internalAccess)),
		),
	)
	paylinkgrpc.RegisterReconcilerServer(grpcSrv, reconcilerServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(paylinkgrpc.ReconcilerServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, healthSrv, lis
}
