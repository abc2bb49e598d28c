// Command server runs the civil-registry transfer service: HTTP API, the
// workflow engine, and the notification worker. Stores are Postgres-backed
// when CIVREG_DATABASE_URL is set and in-memory otherwise, which keeps local
// development dependency-free.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"civreg/internal/db"
	"civreg/internal/directory"
	"civreg/internal/family/store"
	"civreg/internal/notify"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/logger"
	platformmetrics "civreg/internal/platform/metrics"
	platformredis "civreg/internal/platform/redis"
	"civreg/internal/token"
	"civreg/internal/transfer/handler"
	transfermetrics "civreg/internal/transfer/metrics"
	"civreg/internal/transfer/service"
	"civreg/internal/transfer/store/ledger"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		ledgerStore service.Ledger
		familyStore service.FamilyStore
		resolver    directory.Resolver
		serviceOpts []service.Option
	)

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		if err := db.Migrate(conn); err != nil {
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}
		ledgerStore = ledger.NewPostgres(conn)
		familyStore = store.NewPostgres(conn)
		resolver = directory.NewPostgres(conn)
		serviceOpts = append(serviceOpts, service.WithTx(newTransferPostgresTx(conn)))
		log.Info("using postgres stores")
	} else {
		ledgerStore = ledger.NewInMemory()
		familyStore = store.NewInMemory()
		resolver = directory.NewInMemory()
		log.Warn("no database configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		resolver = directory.NewCache(resolver, redisClient.Client, cfg.DirectoryCacheTTL, log)
		log.Info("directory cache enabled")
	}

	var sink notify.Notifier = notify.NewLog(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := notify.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		sink = kafka
		log.Info("kafka notifications enabled", "brokers", cfg.Kafka.Brokers)
	}

	inbox := make(chan notify.Event, cfg.NotifyBuffer)
	worker := notify.NewWorker(sink, inbox, log)

	httpMetrics := platformmetrics.New()
	workflowMetrics := transfermetrics.New()

	serviceOpts = append(serviceOpts,
		service.WithNotifier(notify.NewInbox(inbox, log)),
		service.WithMetrics(workflowMetrics),
		service.WithLogger(log),
	)
	transfers := service.New(ledgerStore, familyStore, resolver, serviceOpts...)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)
	transferHandler := handler.New(transfers, log, httpMetrics, tokens)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	transferHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting civreg transfer service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := worker.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
