package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"teamnet-backend/internal/cache"
	"teamnet-backend/internal/config"
	"teamnet-backend/internal/events"
	"teamnet-backend/internal/gateway"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/migrate"
	"teamnet-backend/internal/notify"
	"teamnet-backend/internal/repository/postgres"
	"teamnet-backend/internal/service"
)

// Dependencies holds the infrastructure shared by the server and the cronjob.
type Dependencies struct {
	Config    *config.Config
	Log       logger.Logger
	DB        *sql.DB
	Store     *postgres.Store
	Redis     *redis.Client
	Cache     cache.Cache
	Publisher events.Publisher
	Mailer    notify.Mailer
	Metrics   *metrics.Metrics
	Gateway   *gateway.Client
}

type Services struct {
	Hierarchy    service.HierarchyService
	Teams        service.TeamService
	Entitlements service.EntitlementService
	Payments     service.PaymentService
	Members      service.MemberService
}

// InitializeDependencies opens the database and every optional backend.
// Redis, Kafka and SendGrid are skipped when unconfigured.
func InitializeDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Log: log, Metrics: metrics.New()}

	log.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	deps.DB = db
	log.Info("Database connection established")

	if cfg.Database.RunMigrations {
		if err := migrate.Run(db, log); err != nil {
			deps.Close()
			return nil, err
		}
	}
	deps.Store = postgres.NewStore(db, log)

	if cfg.Redis.Addr != "" {
		client, err := cache.ConnectRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.Redis = client
		deps.Cache = cache.NewRedisCache(client, "teamnet:")
		log.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
	} else {
		deps.Cache = cache.NewMemoryCache()
		log.Info("Using in-process cache")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		deps.Publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.Info("Kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		deps.Publisher = events.NopPublisher{}
	}

	if cfg.Email.SendGridAPIKey != "" {
		deps.Mailer = notify.NewSendGridMailer(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName, log)
	} else {
		log.Warn("SendGrid API key not set, emails are disabled")
		deps.Mailer = notify.NopMailer{}
	}

	deps.Gateway = gateway.NewClient(gateway.Config{
		BaseURL:          cfg.Gateway.BaseURL,
		APIKey:           cfg.Gateway.APIKey,
		IPNSecret:        cfg.Gateway.IPNSecret,
		Timeout:          cfg.Gateway.Timeout(),
		CurrencyCacheTTL: cfg.Gateway.CurrencyCacheTTL(),
	}, log, gateway.WithCache(deps.Cache), gateway.WithObserver(deps.Metrics))

	return deps, nil
}

func InitializeServices(deps *Dependencies) (*Services, error) {
	cfg := deps.Config
	entitlements := service.NewEntitlementService(deps.Store, deps.Publisher, deps.Mailer, deps.Cache, deps.Metrics, deps.Log)
	payments, err := service.NewPaymentService(deps.Store, deps.Gateway, entitlements, deps.Publisher, deps.Metrics, service.PaymentConfig{
		IPNCallbackURL: cfg.Gateway.IPNCallbackURL,
		SuccessURL:     cfg.Gateway.SuccessURL,
		CancelURL:      cfg.Gateway.CancelURL,
	}, deps.Log)
	if err != nil {
		return nil, err
	}
	return &Services{
		Hierarchy:    service.NewHierarchyService(deps.Store, cfg.Hierarchy.MaxDepth, deps.Metrics, deps.Log),
		Teams:        service.NewTeamService(deps.Store, deps.Log),
		Entitlements: entitlements,
		Payments:     payments,
		Members:      service.NewMemberService(deps.Store),
	}, nil
}

// Close releases connections in reverse order of opening.
func (d *Dependencies) Close() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.Log.Warn("failed to close publisher", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Log.Warn("failed to close redis", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Log.Warn("failed to close database", "error", err)
		}
	}
}
