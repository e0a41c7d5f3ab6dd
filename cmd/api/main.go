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

	"civic-document-service/config"
	apidocs "civic-document-service/docs/api"
	httpHandler "civic-document-service/internal/adapter/http/handler"
	"civic-document-service/internal/adapter/metrics"
	"civic-document-service/internal/adapter/remote"
	"civic-document-service/internal/adapter/scheduler"
	fileStorage "civic-document-service/internal/adapter/storage/file"
	pgStorage "civic-document-service/internal/adapter/storage/postgres"
	redisStorage "civic-document-service/internal/adapter/storage/redis"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/internal/service"
	"civic-document-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Backend).
		Bool("authoritative", cfg.Verification.RemoteURL == "").
		Msg("Starting Civic Document Service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	kv, err := newKVStore(cfg.Store, pool, rdb)
	if err != nil {
		return err
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	digestSvc := service.NewSHA256DigestService()

	storeOpts := service.RecordStoreOptions{Debounce: cfg.Store.Debounce}
	if cfg.Store.Encrypt {
		encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
		if err != nil {
			return fmt.Errorf("initializing encryption service: %w", err)
		}
		storeOpts.Sealer = encSvc
	}
	storeLog := logger.WithComponent(log, "store")

	// Directory (residents + announcements)
	directory, err := service.NewDirectoryService(ctx,
		service.NewRecordStore[domain.Resident](kv, domain.CollectionResidents, storeOpts, collector, storeLog),
		service.NewRecordStore[domain.Announcement](kv, domain.CollectionAnnouncements, storeOpts, collector, storeLog),
		logger.WithComponent(log, "directory"),
	)
	if err != nil {
		return fmt.Errorf("loading directory: %w", err)
	}

	// Reference numbers
	counterStore := service.NewRecordStore[domain.SequenceCounter](kv, domain.CollectionCounters, storeOpts, collector, storeLog)
	counters, err := counterStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading sequence counters: %w", err)
	}
	allocator, err := service.NewSequenceAllocator(map[domain.ArtifactKind]string{
		domain.ArtifactKindQRTID:       cfg.Sequence.QRTPrefix,
		domain.ArtifactKindCertificate: cfg.Sequence.CertificatePrefix,
		domain.ArtifactKindBlotter:     cfg.Sequence.BlotterPrefix,
	}, cfg.Sequence.ResetYearly, counters, counterStore, nil, logger.WithComponent(log, "allocator"))
	if err != nil {
		return fmt.Errorf("initializing sequence allocator: %w", err)
	}

	// Authoritative index: local table, or a remote instance that owns it.
	authoritative := cfg.Verification.RemoteURL == ""
	var index ports.DocumentIndex
	if authoritative {
		index = pgStorage.NewDocumentIndex(pool)
	} else {
		index = remote.NewClient(cfg.Verification.RemoteURL, cfg.Verification.IndexSecret, sigSvc, nil)
	}

	notifier := service.NewStatusNotifier(
		cfg.Notifier.WebhookURL,
		cfg.Notifier.Secret,
		sigSvc,
		&http.Client{Timeout: 10 * time.Second},
		logger.WithComponent(log, "notifier"),
	)

	lifecycle, err := service.NewLifecycleManager(ctx, service.LifecycleDeps{
		Allocator: allocator,
		Digest:    digestSvc,
		Residents: directory,
		Index:     index,
		Notifier:  notifier,
		Metrics:   collector,
		Artifacts: service.NewArtifactStores(kv, storeOpts, collector, storeLog),
		Payments:  service.NewRecordStore[domain.PaymentTransaction](kv, domain.CollectionPayments, storeOpts, collector, storeLog),
		Limiter:   ratelimit.New(cfg.Verification.PublishRPS),
		Log:       logger.WithComponent(log, "lifecycle"),
	})
	if err != nil {
		return fmt.Errorf("loading artifacts: %w", err)
	}

	var verificationLogs ports.VerificationLogRepository
	switch cfg.Verification.LogBackend {
	case "redis":
		verificationLogs = redisStorage.NewVerificationLog(rdb)
	default:
		verificationLogs = pgStorage.NewVerificationLogRepository(pool)
	}
	gateway := service.NewVerificationGateway(
		index,
		lifecycle,
		digestSvc,
		verificationLogs,
		collector,
		cfg.Verification.Timeout,
		logger.WithComponent(log, "verification"),
	)

	staffAuth, err := service.NewStaffAuthService(cfg.Staff.Accounts, hashSvc, tokenSvc)
	if err != nil {
		return fmt.Errorf("initializing staff accounts: %w", err)
	}
	if len(cfg.Staff.Accounts) == 0 {
		log.Warn().Msg("No staff accounts configured, staff routes are unusable")
	}
	reportingSvc := service.NewReportingService(lifecycle)
	auditSvc := service.NewAuditService(pgStorage.NewAuditRepository(pool), 0, logger.WithComponent(log, "audit"))

	deps := httpHandler.RouterDeps{
		Lifecycle:      lifecycle,
		Verification:   gateway,
		Directory:      directory,
		StaffAuth:      staffAuth,
		ReportingSvc:   reportingSvc,
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		NonceStore:     redisStorage.NewNonceStore(rdb),
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       auditSvc,
		ProviderSecret: cfg.Payment.ProviderSecret,
		MaxDrift:       cfg.Payment.MaxDrift,
		Metrics:        collector,
		Gatherer:       reg,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		OpenAPISpec:    apidocs.OpenAPI,
		Logger:         log,
	}
	if authoritative {
		deps.Index = index
		deps.IndexSecret = cfg.Verification.IndexSecret
	}
	if cfg.Payment.ProviderSecret == "" {
		log.Warn().Msg("payment.provider_secret is empty, payment callbacks are disabled")
	}
	router := httpHandler.SetupRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if _, err := scheduler.SchedulePublish(gctx, cfg.Verification.SyncSchedule, lifecycle, logger.WithComponent(log, "scheduler")); err != nil {
		return err
	}

	g.Go(func() error { return auditSvc.Run(gctx) })

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := lifecycle.Flush(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush artifact records")
		}
		if err := directory.Flush(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush directory records")
		}
		return nil
	})

	return g.Wait()
}

// newKVStore selects the durable backend for the local record store.
func newKVStore(cfg config.StoreConfig, pool *pgxpool.Pool, rdb *goredis.Client) (ports.KVStore, error) {
	switch cfg.Backend {
	case "redis":
		return redisStorage.NewKVStore(rdb), nil
	case "postgres":
		return pgStorage.NewKVStore(pool), nil
	default:
		kv, err := fileStorage.NewKVStore(afero.NewOsFs(), cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return kv, nil
	}
}
