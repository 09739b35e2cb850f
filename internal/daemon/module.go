package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/smsdash/internal/api"
	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/config"
	"github.com/matheus3301/smsdash/internal/live"
	"github.com/matheus3301/smsdash/internal/lock"
	"github.com/matheus3301/smsdash/internal/logging"
	"github.com/matheus3301/smsdash/internal/outbox"
	"github.com/matheus3301/smsdash/internal/provider"
	"github.com/matheus3301/smsdash/internal/relay"
	"github.com/matheus3301/smsdash/internal/state"
	"github.com/matheus3301/smsdash/internal/status"
	"github.com/matheus3301/smsdash/internal/store"
	intsync "github.com/matheus3301/smsdash/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Messenger is everything the daemon needs from the SMS provider.
type Messenger interface {
	api.Sender
	intsync.History
}

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
	// Optional overrides for testing; nil means build from Config.
	Messenger Messenger
	Logger    *zap.Logger
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideMirror,
			provideState,
			provideMessenger,
			provideOutbox,
			provideSyncEngine,
			provideService,
			provideHub,
			provideRelay,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	cfg := p.Config
	opts := logging.Options{
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if cfg.Log.File {
		opts.FilePath = cfg.Layout().LogFile()
	}
	return logging.New(opts)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	layout := p.Config.Layout()
	if err := layout.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("dir", layout.Dir))
	l, err := lock.Acquire(layout.Dir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideMirror takes the lock as a dependency so no file is opened before it is held.
func provideMirror(p Params, _ *lock.Lock, logger *zap.Logger) (store.Mirror, error) {
	layout := p.Config.Layout()
	if p.Config.Storage.Backend != config.BackendSQLite {
		logger.Info("json mirror initialized", zap.String("dir", layout.Dir))
		return store.NewJSONMirror(layout.Contacts(), layout.Conversations()), nil
	}

	db, result, err := store.OpenMigrated(layout.Database())
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("sqlite mirror initialized", zap.String("path", layout.Database()))
	return db, nil
}

func provideState(mirror store.Mirror, b *bus.Bus, logger *zap.Logger) (*state.Store, error) {
	return state.New(mirror, b, logger)
}

func provideMessenger(p Params, logger *zap.Logger) Messenger {
	if p.Messenger != nil {
		return p.Messenger
	}
	tw := p.Config.Twilio
	return provider.NewTwilio(provider.Credentials{
		AccountSID: tw.AccountSID,
		AuthToken:  tw.AuthToken,
		FromNumber: tw.PhoneNumber,
	}, logger)
}

func provideOutbox(m Messenger, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(m, b, outbox.DefaultQueueSize, 15*time.Second, logger)
}

func provideSyncEngine(p Params, m Messenger, st *state.Store, mirror store.Mirror, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(m, st, mirror, b, machine, p.Config.Twilio.HistoryLimit, logger)
}

func provideService(p Params, st *state.Store, m Messenger, ob *outbox.Sender, logger *zap.Logger) *api.Service {
	return api.NewService(st, m, ob, api.Options{
		OurNumber:   m.OurNumber(),
		OwnerNumber: p.Config.Owner.PhoneNumber,
		Logger:      logger,
	})
}

func provideHub(b *bus.Bus, logger *zap.Logger) *live.Hub {
	return live.NewHub(b, logger)
}

// provideRelay falls back to a no-op publisher when the broker is unset or unreachable.
func provideRelay(p Params, b *bus.Bus, logger *zap.Logger) *relay.Relay {
	rc := p.Config.Relay
	if rc.AMQPURL == "" {
		return relay.New(relay.NewFallback(logger), b, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pub, err := relay.NewAMQP(ctx, relay.ConnectionOptions{
		URL:           rc.AMQPURL,
		RetryAttempts: 5,
		Delay:         500 * time.Millisecond,
		Logger:        logger,
	}, rc.Exchange)
	if err != nil {
		logger.Warn("event relay disabled", zap.Error(err))
		return relay.New(relay.NewFallback(logger), b, logger)
	}
	logger.Info("event relay connected", zap.String("exchange", rc.Exchange))
	return relay.New(pub, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, mirror store.Mirror, engine *intsync.Engine, hub *live.Hub, rl *relay.Relay, sender *outbox.Sender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			hub.Start(context.Background())
			rl.Start(context.Background())
			sender.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// One resync per process; its failure degrades the daemon but never stops it.
			go func() {
				if _, err := engine.Resync(context.Background()); err != nil {
					logger.Warn("startup resync failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			hub.Stop()
			sender.Stop()
			if err := rl.Stop(); err != nil {
				logger.Warn("error closing relay", zap.Error(err))
			}
			if err := mirror.Close(); err != nil {
				logger.Warn("error closing mirror", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
