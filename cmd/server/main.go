// Command server runs the screening-session coordinator: HTTP API, step
// lock manager, hash-chained audit log, and the per-session broadcast
// fan-out. Postgres, Redis, and Kafka are all optional; absent backends
// fall back to in-memory implementations for local development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"screenflow/internal/approval"
	approvalmemory "screenflow/internal/approval/store/memory"
	approvalpostgres "screenflow/internal/approval/store/postgres"
	"screenflow/internal/assignment"
	assignmentmemory "screenflow/internal/assignment/store/memory"
	"screenflow/internal/audit"
	auditmemory "screenflow/internal/audit/store/memory"
	auditpostgres "screenflow/internal/audit/store/postgres"
	"screenflow/internal/broadcast"
	"screenflow/internal/directory"
	"screenflow/internal/lock"
	lockmemory "screenflow/internal/lock/store/memory"
	lockredis "screenflow/internal/lock/store/redis"
	"screenflow/internal/notify"
	"screenflow/internal/platform/config"
	"screenflow/internal/platform/httpserver"
	"screenflow/internal/platform/logger"
	platformredis "screenflow/internal/platform/redis"
	"screenflow/internal/screening/metrics"
	"screenflow/internal/screening/service"
	"screenflow/internal/screening/store/session"
	httptransport "screenflow/internal/transport/http"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

func main() {
	if err := run(); err != nil {
		logger.New().Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httptransport.HealthChecker{}

	// persistence: postgres when a DSN is configured, memory otherwise
	var (
		sessions      session.Store  = session.NewInMemoryStore()
		auditStore    audit.Store    = auditmemory.NewInMemoryStore()
		approvalStore approval.Store = approvalmemory.NewInMemoryApprovalStore()
	)
	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions = session.NewPostgres(pool)
		auditStore = auditpostgres.New(db)
		approvalStore = approvalpostgres.New(db)
		health["postgres"] = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
			}
			return nil
		}
	}

	// coordination: redis when configured, memory otherwise
	var (
		lockStore lock.Store       = lockmemory.NewInMemoryLockStore()
		broker    broadcast.Broker = broadcast.NewMemoryBroker()
	)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		lockStore = lockredis.NewRedisLockStore(redisClient.Client)
		broker = broadcast.NewRedisBroker(redisClient.Client, log)
		health["redis"] = redisClient.Health
	}

	locks, err := lock.NewManager(lockStore,
		lock.WithTTL(cfg.Workflow.StepLockTTL),
		lock.WithLogger(log),
	)
	if err != nil {
		return err
	}
	registry, err := assignment.NewRegistry(assignmentmemory.NewInMemoryAssignmentStore())
	if err != nil {
		return err
	}
	auditLog, err := audit.NewLog(auditStore, audit.WithLogger(log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx); err != nil {
			return err
		}
		worker := notify.NewWorker(publisher, log)
		g.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		opts = append(opts, service.WithNotifier(worker))
	}

	coordinator, err := service.New(
		sessions, locks, registry, approvalStore, auditLog, broker,
		patientDirectoryFromEnv(), opts...,
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Screening:      coordinator,
		Verifier:       coordinator,
		Logger:         log,
		JWTSigningKey:  []byte(cfg.Server.JWTSigningKey),
		AdminTokenHash: cfg.Server.AdminTokenHash,
		Health:         health,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g.Go(func() error {
		log.Info("starting screenflow", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// patientDirectoryFromEnv seeds the development directory from
// PATIENT_DIRECTORY ("id=name,id=name"). Production deployments put the
// real record store client behind the same interface.
func patientDirectoryFromEnv() directory.PatientDirectory {
	dir := directory.NewStaticDirectory(nil)
	for _, pair := range strings.Split(os.Getenv("PATIENT_DIRECTORY"), ",") {
		key, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		dir.Add(id.PatientID(key), name)
	}
	return dir
}
