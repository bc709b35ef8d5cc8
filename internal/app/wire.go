package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/pydea-rs/omen-creator-panel/internal/blob/s3"
	"github.com/pydea-rs/omen-creator-panel/internal/cache/redis"
	"github.com/pydea-rs/omen-creator-panel/internal/config"
	"github.com/pydea-rs/omen-creator-panel/internal/crypto"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/notify"
	"github.com/pydea-rs/omen-creator-panel/internal/platform/omenium"
	"github.com/pydea-rs/omen-creator-panel/internal/service"
	"github.com/pydea-rs/omen-creator-panel/internal/session"
	"github.com/pydea-rs/omen-creator-panel/internal/store/postgres"
	"github.com/pydea-rs/omen-creator-panel/internal/store/sqlite"
	"github.com/pydea-rs/omen-creator-panel/internal/submission"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Endpoint is the configured starting endpoint. Nothing is loaded from
	// it until a mode selects it.
	Endpoint domain.Endpoint

	Sessions     *session.Manager
	Workspace    *service.Workspace
	Orchestrator *submission.Orchestrator

	// History is nil when the history driver is "none".
	History  *service.HistoryService
	Notifier *notify.Notifier

	// Redis-backed; nil without redis.addr.
	RateLimiter domain.RateLimiter
	LockManager *redis.LockManager

	// SignalBus is Redis when configured, in-process otherwise.
	SignalBus domain.SignalBus
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	ep, err := cfg.Endpoint()
	if err != nil {
		return fail("endpoint", err)
	}
	deps := &Dependencies{Endpoint: ep}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		logger.Info("wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.SignalBus = service.NewLocalBus(logger)
	}

	// --- Session store ---
	var store domain.SessionStore
	switch strings.ToLower(cfg.Session.Store) {
	case "file":
		var sealer *crypto.Sealer
		if cfg.Session.Passphrase != "" {
			sealer, err = crypto.NewSealer(cfg.Session.Passphrase, cfg.Session.Iterations)
			if err != nil {
				return fail("session sealer", err)
			}
		} else {
			logger.Warn("wire: session file is not encrypted; set session.passphrase",
				slog.String("path", cfg.Session.Path))
		}
		store = session.NewFileStore(cfg.Session.Path, sealer)
	case "redis":
		store = redis.NewSessionStore(redisClient)
	default:
		store = session.NewMemoryStore()
	}
	deps.Sessions = session.NewManager(store, logger)

	// --- Reference cache ---
	var cache domain.ReferenceCache
	switch strings.ToLower(cfg.API.ReferenceCache) {
	case "memory":
		cache = service.NewMemoryReferenceCache(cfg.API.CacheTTL.Duration)
	case "redis":
		cache = redis.NewReferenceCache(redisClient, cfg.API.CacheTTL.Duration)
	}

	deps.Workspace = service.NewWorkspace(dialer(cfg, logger), deps.Sessions, cache, logger)

	// --- Image mirror (optional) ---
	var gw submission.Gateway = deps.Workspace
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		gw = service.NewImageMirror(deps.Workspace, s3blob.NewWriter(s3Client), logger)
		logger.Info("wire: image mirror enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	// --- Submission pipeline ---
	orch := submission.New(gw, deps.Sessions, submission.Options{
		SuccessDelay: cfg.Submission.SuccessDelay.Duration,
		FailureDelay: cfg.Submission.FailureDelay.Duration,
		Logger:       logger,
	})
	deps.Orchestrator = orch
	deps.Workspace.SetBusy(func() bool { return orch.State().Busy() })

	// --- History ---
	var history domain.HistoryStore
	switch strings.ToLower(cfg.History.Driver) {
	case "sqlite":
		db, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			return fail("sqlite", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		history = sqlite.NewHistoryStore(db)
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.History.DSN,
			MaxConns: cfg.History.PoolMaxConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, func() { _ = pgClient.Close() })

		// Run migrations if enabled.
		if cfg.History.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		history = postgres.NewHistoryStore(pgClient.Pool())
	}
	if history != nil {
		deps.History = service.NewHistoryService(history, logger)
		orch.AddHook(deps.History)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if deps.Notifier.Enabled() {
		orch.AddHook(deps.Notifier)
	}

	// --- State signals ---
	publisher := service.NewStatePublisher(deps.SignalBus, func() string {
		return deps.Workspace.Endpoint().BaseURL
	}, logger)
	closers = append(closers, orch.Subscribe(publisher.Publish))

	return deps, cleanup, nil
}

// dialer builds omenium clients that share the configured HTTP settings.
func dialer(cfg *config.Config, logger *slog.Logger) service.Dialer {
	timeout := cfg.API.Timeout.Duration
	ua := cfg.API.UserAgent
	return func(ep domain.Endpoint) service.Client {
		return omenium.NewClient(ep.BaseURL,
			omenium.WithTimeout(timeout),
			omenium.WithUserAgent(ua),
			omenium.WithLogger(logger),
		)
	}
}

// Snapshot is the submission state as a bus signal, for clients that just
// connected.
func (d *Dependencies) Snapshot() domain.StateSignal {
	return domain.NewStateSignal(d.Orchestrator.State(), d.Workspace.Endpoint().BaseURL, time.Now().UTC())
}
