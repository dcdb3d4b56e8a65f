package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/api"
	"github.com/Leganyst/reservation-core/internal/config"
	"github.com/Leganyst/reservation-core/internal/db"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/notify"
	"github.com/Leganyst/reservation-core/internal/repository"
	"github.com/Leganyst/reservation-core/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:   "reservation-core",
		Short: "Restaurant table reservation core: availability, admission and lifecycle",
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file (optional)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gormDB, err := openDB()
			if err != nil {
				return err
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				defer sqlDB.Close()
			}
			log.Println("migrations applied")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, websocket feed, outbox dispatcher and gRPC health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// openDB подключается к БД и прогоняет миграции моделей.
func openDB() (*gorm.DB, error) {
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return nil, fmt.Errorf("load db config: %w", err)
	}
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return gormDB, nil
}

func serve(ctx context.Context) error {
	// 1. Конфиг приложения.
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	// 2. БД и миграции.
	gormDB, err := openDB()
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	// 3. Репозитории и рассылка событий: outbox для брокера, hub для персонала онлайн.
	store := repository.NewStore(gormDB)
	hub := notify.NewHub(appCfg.CORSOrigins...)
	go hub.Run(ctx)
	publisher := notify.Fanout{notify.NewOutboxPublisher(store.Outbox), hub}

	// 4. Сервисы ядра.
	clock := service.SystemClock{}
	schedule := service.NewScheduleService(store)
	inventory := service.NewInventoryService(store)
	handler := api.NewHandler(
		service.NewAvailabilityService(store, schedule, inventory, clock),
		service.NewAdmissionService(store, schedule, clock, publisher, appCfg.AdmissionTimeout),
		service.NewLifecycleService(store, clock, publisher, appCfg.AdmissionTimeout),
		schedule,
		hub,
	)

	// 5. Диспетчер outbox. Без RABBITMQ_URI сообщения только копятся в таблице.
	if appCfg.RabbitURI != "" {
		bus := notify.NewRabbitBus(appCfg.RabbitURI, appCfg.RabbitExchange, appCfg.RabbitQueuePrefix)
		dispatcher := notify.NewDispatcher(store.Outbox, notify.NewRabbitSink(bus), appCfg.OutboxMaxRetry, appCfg.OutboxBatchSize)
		notify.NewScheduler(dispatcher, appCfg.OutboxIntervalSec).Start(ctx)
		log.Printf("outbox dispatcher started, exchange=%s", appCfg.RabbitExchange)
	} else {
		log.Println("RABBITMQ_URI is empty, outbox dispatcher disabled")
	}

	// 6. HTTP API.
	httpSrv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           api.NewRouter(handler, appCfg.JWTSecret, appCfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. gRPC: только health и reflection для проб оркестратора.
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", appCfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("HTTP server listening on %s", appCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		log.Printf("gRPC health server listening on %s", appCfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// 8. Грейсфул-шатдаун по сигналу или падению сервера.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Println("shutting down...")
	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	return runErr
}
