package main

import (
	"context"
	"fmt"
	"time"

	"greenledger/config"
	"greenledger/internal/api"
	"greenledger/internal/auth"
	"greenledger/internal/broker"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/qrcode"
	"greenledger/internal/redisclient"
	"greenledger/internal/service"
	"greenledger/internal/store"
	"greenledger/internal/tracking"
	"greenledger/internal/util"
	"greenledger/internal/worker"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// app holds every wired component. Optional dependencies are nil when
// they are not configured or not reachable.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tp     *sdktrace.TracerProvider

	store kv.Store
	redis *redisclient.Client
	db    *store.Store

	producer  broker.Publisher
	publisher *broker.EventPublisher

	history     *history.Manager
	farmerCodes *history.FarmerLedger
	auth        *auth.Service
	farmerLogin *auth.FarmerLogin
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := util.InitLogger(cfg.Server.Env, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: util.GetLogger()}

	tp, err := util.InitTracer(cfg.Observ.TracingEnabled, cfg.Observ.JaegerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	a.tp = tp

	if err := a.openStorage(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.Kafka.Enabled {
		a.producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		a.logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		a.producer = broker.NewLogProducer()
		a.logger.Info("Kafka disabled, events are logged only")
	}
	a.publisher = broker.NewEventPublisher(a.producer)

	a.history = history.NewManager(a.store, nil, cfg.QR.SeedCount)
	a.farmerCodes = history.NewFarmerLedger(a.store)

	local := auth.NewLocalProvider(a.store, auth.LocalOptions{
		AllowDemoOTP: cfg.Auth.AllowDemoOTP,
		OTPTTL:       cfg.Auth.OTPTTL,
		OTPCooldown:  cfg.Auth.OTPCooldown,
	})
	var remote auth.Provider
	if cfg.Auth.ProviderURL != "" {
		remote = auth.NewRemoteProvider(cfg.Auth.ProviderURL, cfg.Auth.ProviderKey, cfg.Auth.Timeout)
	} else {
		a.logger.Warn("No identity provider configured, using local accounts only")
	}
	sessions := auth.NewSessionStore(a.store, cfg.Auth.SessionTTL, nil)
	a.auth = auth.NewService(remote, local, sessions, a.publisher)
	a.farmerLogin = auth.NewFarmerLogin(a.store, a.auth, 0, nil)

	return a, nil
}

// openStorage connects the kv backend plus the optional redis and
// postgres side channels.
func (a *app) openStorage(ctx context.Context) error {
	cfg := a.cfg

	switch cfg.Storage.Backend {
	case "", "memory":
		a.store = kv.NewMemoryStore()
	case "badger":
		b, err := kv.OpenBadger(cfg.Storage.BadgerDir)
		if err != nil {
			return fmt.Errorf("failed to open badger: %w", err)
		}
		a.store = b
	case "redis":
		c, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = c
		a.store = c
	case "postgres":
		db, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		a.store = db
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	a.logger.Info("Storage ready", zap.String("backend", cfg.Storage.Backend))

	if a.redis == nil && cfg.Redis.Enabled {
		c, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.logger.Warn("Redis unavailable, continuing without scan counters", zap.Error(err))
		} else {
			a.redis = c
		}
	}
	return nil
}

func (a *app) openDatabase(ctx context.Context) (*store.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.NewStore(a.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	a.logger.Info("Database connected")
	return db, nil
}

func (a *app) qrService() *service.QRService {
	renderer := qrcode.NewRenderer(a.cfg.QR.RenderEndpoint, a.cfg.QR.ImageSize, a.cfg.QR.RenderTimeout)
	return service.NewQRService(a.store, a.history, a.farmerCodes, nil, renderer, a.publisher)
}

func (a *app) handler() *api.Handler {
	trk := tracking.NewService(nil)
	h := api.NewHandler(
		a.qrService(),
		service.NewDashboardService(a.history, a.farmerCodes, trk),
		a.history,
		trk,
		a.auth,
		a.farmerLogin,
	)
	if a.redis != nil {
		h.WithScanStats(a.redis)
		h.WithReadinessCheck("redis", a.redis.Ping)
	}
	if a.db != nil {
		h.WithAuditLog(a.db)
		h.WithReadinessCheck("postgres", a.db.Ping)
	}
	return h
}

func (a *app) housekeeping() *worker.Housekeeping {
	var locker worker.Locker
	if a.redis != nil {
		locker = a.redis
	}
	return worker.NewHousekeeping(a.cfg.Worker.HousekeepingInterval, locker,
		worker.PurgeTask{Kind: "otp", Purge: a.auth.Local().PurgeExpiredOTPs},
		worker.PurgeTask{Kind: "session", Purge: a.auth.Sessions().PurgeExpired},
		worker.PurgeTask{Kind: "farmer_login", Purge: a.farmerLogin.PurgeStale},
	)
}

func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("Failed to close producer", zap.Error(err))
		}
	}
	if a.store != nil && a.store != kv.Store(a.redis) && a.store != kv.Store(a.db) {
		a.store.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.tp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tp.Shutdown(ctx); err != nil {
			a.logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}
	util.SyncLogger()
}
