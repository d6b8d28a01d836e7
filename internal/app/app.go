// Package app wires configuration, infrastructure adapters and application
// handlers into one container shared by the api, worker and matchctl binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alem-hub/mentorship-engine/config"
	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/application/query"
	"github.com/alem-hub/mentorship-engine/internal/application/saga"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/external/community"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/notification"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/mentorship-engine/pkg/logger"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

// ProgramStore reads programs, including the list of programs open for matching.
type ProgramStore interface {
	mentorship.ProgramReader
	ListPrograms(ctx context.Context, now time.Time) ([]mentorship.Program, error)
}

// Options customizes container construction.
type Options struct {
	// Logger overrides the logger built from the observability config.
	Logger *slog.Logger

	// Store forces the in-memory store regardless of DATABASE_URL.
	Store *memory.Store

	// Clock overrides the system clock.
	Clock timeutil.Clock

	// SyncEvents delivers events on the publishing goroutine.
	SyncEvents bool
}

// Container holds every wired component.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  timeutil.Clock
	Engine mentorship.Config

	// Infrastructure; nil when the backing service is not configured.
	DB        *postgres.Connection
	Cache     *redis.Cache
	Community *community.Client
	Bus       *messaging.InMemoryEventBus

	Matches       mentorship.MatchRepository
	Registrations mentorship.RegistrationReader
	Programs      ProgramStore

	// Commands
	Proposer         *command.Proposer
	Reassigner       *saga.ReassignmentSaga
	InitiateMatching *command.InitiateMatchingHandler
	AcceptMatch      *command.AcceptMatchHandler
	RejectMatch      *command.RejectMatchHandler
	ManualMatch      *command.ManualMatchHandler
	ExpireMatches    *command.ExpireMatchesHandler

	// Queries
	ListMatches       *query.ListMatchesHandler
	GetMatch          *query.GetMatchHandler
	ProgramStats      *query.GetProgramStatsHandler
	PreviewCandidates *query.PreviewCandidatesHandler

	closers []func() error
}

// NewLogger builds the process logger from the observability config.
func NewLogger(cfg *config.Config, service string) *slog.Logger {
	log := logger.NewSlog(logger.SlogOptions{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddSource: cfg.App.Debug,
		Service:   service,
	})
	slog.SetDefault(log)
	return log
}

// New builds the container. Optional services that fail to connect are logged
// and replaced by local fallbacks; the database is required when configured.
func New(ctx context.Context, cfg *config.Config, opts Options) (c *Container, err error) {
	c = &Container{
		Config: cfg,
		Logger: opts.Logger,
		Clock:  opts.Clock,
		Engine: cfg.MatchingEngine(),
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = timeutil.SystemClock{}
	}
	if err := c.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}

	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	contacts, err := c.initStore(ctx, opts.Store)
	if err != nil {
		return nil, err
	}

	locker, sweepLock, statsCache := c.initRedis(ctx, opts.Store != nil)

	c.Bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      !opts.SyncEvents,
		WorkerPoolSize: 8,
		Logger:         c.Logger,
		EnableMetrics:  true,
	})
	c.closers = append(c.closers, c.Bus.Close)

	if err := c.initKafka(); err != nil {
		return nil, err
	}

	if statsCache != nil {
		if err := query.NewStatsInvalidator(statsCache, c.Logger).Register(c.Bus); err != nil {
			return nil, fmt.Errorf("register stats invalidator: %w", err)
		}
	}

	deps := command.Dependencies{
		Matches:       c.Matches,
		Registrations: c.Registrations,
		Programs:      c.Programs,
		Notifier:      c.newNotifier(contacts),
		Spaces:        c.newSpaces(),
		Locker:        locker,
		Events:        c.Bus,
		IDs:           command.UUIDGenerator{},
		Clock:         c.Clock,
		Logger:        c.Logger,
		Config:        c.Engine,
	}

	c.Proposer = command.NewProposer(deps)
	c.Reassigner = saga.NewReassignmentSaga(saga.ReassignmentDependencies{
		Matches:       c.Matches,
		Registrations: c.Registrations,
		Programs:      c.Programs,
		Notifier:      deps.Notifier,
		Events:        c.Bus,
		Proposer:      c.Proposer,
		Clock:         c.Clock,
		Logger:        c.Logger,
	})

	c.InitiateMatching = command.NewInitiateMatchingHandler(deps, c.Proposer)
	c.AcceptMatch = command.NewAcceptMatchHandler(deps)
	c.RejectMatch = command.NewRejectMatchHandler(deps, c.Reassigner)
	c.ManualMatch = command.NewManualMatchHandler(deps)
	c.ExpireMatches = command.NewExpireMatchesHandler(deps, c.Reassigner, sweepLock)

	c.ListMatches = query.NewListMatchesHandler(c.Matches)
	c.GetMatch = query.NewGetMatchHandler(c.Matches)
	c.PreviewCandidates = query.NewPreviewCandidatesHandler(c.Programs, c.Registrations, c.Matches, c.Engine)
	c.ProgramStats = query.NewGetProgramStatsHandler(c.Programs, c.Matches, statsCache, c.Engine, c.Clock, c.Logger)

	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

func (c *Container) initStore(ctx context.Context, store *memory.Store) (mentorship.ContactDirectory, error) {
	if store == nil && c.Config.Database.URL == "" {
		c.Logger.Warn("DATABASE_URL is not set, using the in-memory store")
		store = memory.NewStore()
	}
	if store != nil {
		c.Matches, c.Registrations, c.Programs = store, store, store
		return nil, nil
	}

	dbCfg := postgres.DefaultConfig()
	dbCfg.URL = c.Config.Database.URL
	dbCfg.MaxConns = int32(c.Config.Database.MaxConns)
	dbCfg.MinConns = int32(c.Config.Database.MinConns)
	dbCfg.MaxConnLifetime = c.Config.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = c.Config.Database.ConnMaxIdleTime
	dbCfg.ConnectTimeout = c.Config.Database.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	c.DB = conn
	c.closers = append(c.closers, func() error { conn.Close(); return nil })

	if c.Config.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		c.Logger.Info("database schema is up to date", "applied", applied)
	}

	registrations := postgres.NewRegistrationRepository(conn)
	c.Matches = postgres.NewMatchRepository(conn)
	c.Registrations = registrations
	c.Programs = registrations
	return registrations, nil
}

// initRedis connects Redis when enabled. Any failure degrades to in-process
// locks and an uncached stats query.
func (c *Container) initRedis(ctx context.Context, memoryMode bool) (mentorship.MentorLocker, command.SweepLock, query.StatsCache) {
	rc := c.Config.Redis
	if rc.Disabled || memoryMode {
		return command.NewLocalLocker(), nil, nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = rc.Host
	redisCfg.Port = rc.Port
	redisCfg.Password = rc.Password
	redisCfg.DB = rc.DB
	redisCfg.PoolSize = rc.PoolSize
	redisCfg.MinIdleConns = rc.MinIdleConns
	redisCfg.DialTimeout = rc.DialTimeout
	redisCfg.ReadTimeout = rc.ReadTimeout
	redisCfg.WriteTimeout = rc.WriteTimeout

	cache, err := redis.NewCache(redisCfg)
	if err == nil {
		err = cache.Ping(ctx)
		if err != nil {
			_ = cache.Close()
		}
	}
	if err != nil {
		c.Logger.Warn("failed to connect to Redis, using in-process locks", "error", err)
		return command.NewLocalLocker(), nil, nil
	}
	c.Cache = cache
	c.closers = append(c.closers, cache.Close)

	stats := redis.NewStatsCache(cache, rc.StatsTTL)
	if !c.enabled(config.FeatureDistributedMentorLock) {
		return command.NewLocalLocker(), nil, stats
	}

	lockCfg := redis.DefaultLockerConfig()
	lockCfg.TTL = rc.LockTTL
	lockCfg.MaxWait = rc.LockMaxWait
	locker := redis.NewLocker(cache, lockCfg)
	c.Logger.Info("distributed mentor lock enabled")
	return locker, locker, stats
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOUND ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Container) initKafka() error {
	kc := c.Config.Kafka
	if !c.enabled(config.FeatureKafkaEvents) || len(kc.Brokers) == 0 {
		return nil
	}

	kafkaCfg := messaging.KafkaConfig{Brokers: kc.Brokers, Topic: kc.Topic, WriteTimeout: kc.WriteTimeout}
	forwarder := messaging.NewKafkaForwarder(messaging.NewKafkaWriter(kafkaCfg), kafkaCfg, c.Logger)
	if err := forwarder.Register(c.Bus); err != nil {
		return fmt.Errorf("register kafka forwarder: %w", err)
	}
	// the bus closes first so queued events still reach the forwarder
	c.closers = append([]func() error{forwarder.Close}, c.closers...)
	c.Logger.Info("forwarding match events to kafka", "topic", kc.Topic, "brokers", kc.Brokers)
	return nil
}

func (c *Container) newNotifier(contacts mentorship.ContactDirectory) mentorship.Notifier {
	nc := c.Config.Notification
	if nc.SendGridAPIKey == "" || contacts == nil {
		return notification.NewLogNotifier(c.Logger)
	}
	return notification.NewSendGridNotifier(notification.Config{
		APIKey:    nc.SendGridAPIKey,
		FromEmail: nc.FromEmail,
		FromName:  nc.FromName,
		BaseURL:   nc.BaseURL,
		Host:      nc.SendGridHost,
	}, notification.NewAPISender(nc.SendGridAPIKey, nc.SendGridHost), contacts, c.Logger)
}

func (c *Container) newSpaces() mentorship.CollaborationSpaces {
	cc := c.Config.Community
	if cc.BaseURL == "" || !c.enabled(config.FeatureCollaborationSpaces) {
		return command.NoopSpaces{}
	}
	clientCfg := community.DefaultClientConfig(cc.BaseURL)
	clientCfg.Token = cc.Token
	if cc.Timeout > 0 {
		clientCfg.Timeout = cc.Timeout
	}
	clientCfg.Logger = c.Logger
	c.Community = community.NewClient(clientCfg)
	return c.Community
}

// enabled reports a global feature flag; a config without flags uses defaults.
func (c *Container) enabled(name string) bool {
	if c.Config.Features == nil {
		c.Config.Features = config.NewFeatureFlags()
	}
	return c.Config.Features.IsEnabled(name, nil)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
