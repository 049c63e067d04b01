package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/access"
	cfgpkg "github.com/brugmanjoost/drumbeat/internal/config"
	"github.com/brugmanjoost/drumbeat/internal/lifecycle"
	"github.com/brugmanjoost/drumbeat/internal/notify"
	"github.com/brugmanjoost/drumbeat/internal/storage"
	"github.com/brugmanjoost/drumbeat/internal/storage/memory"
	pebblestore "github.com/brugmanjoost/drumbeat/internal/storage/pebble"
	"github.com/brugmanjoost/drumbeat/internal/storage/sqlstore"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Store replaces the configured backend when set. The runtime takes
	// ownership and closes it.
	Store storage.Gateway
	// Notifier replaces the configured event notifier when set.
	Notifier lifecycle.Notifier
}

// Runtime wires storage, access policy and the lifecycle engine for a
// single drumbeat instance.
type Runtime struct {
	store     storage.Gateway
	engine    *lifecycle.Engine
	policy    *access.Policy
	queueName *regexp.Regexp
	closers   []io.Closer
	config    cfgpkg.Config
	logger    logpkg.Logger
}

// Open initializes storage and the engine. Configured SQL schemas are
// migrated before Open returns.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	logger = logger.WithComponent("runtime")

	queueName, err := regexp.Compile(cfg.QueueNameRegex)
	if err != nil {
		return nil, fmt.Errorf("runtime: queue name pattern: %w", err)
	}
	dedup, err := lifecycle.ParseDedupMode(cfg.Dedup)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	rt := &Runtime{
		queueName: queueName,
		policy:    access.NewPolicy(cfg.Credentials),
		config:    cfg,
		logger:    logger,
	}

	rt.store = opts.Store
	if rt.store == nil {
		if rt.store, err = openStore(ctx, cfg.Storage, logger); err != nil {
			return nil, err
		}
	}
	rt.closers = append(rt.closers, rt.store)

	notifier := opts.Notifier
	if notifier == nil && cfg.Events.Enabled() {
		kn, err := notify.NewKafka(notify.Config{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			RequiredAcks: -1,
			Logger:       logger,
		})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, kn)
		notifier = kn
		logger.Info("publishing lifecycle events", logpkg.Str("topic", cfg.Events.Topic))
	}

	rt.engine, err = lifecycle.New(rt.store, lifecycle.Options{
		Logger:   logger,
		Notifier: notifier,
		Dedup:    dedup,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	if rt.policy.Len() == 0 {
		logger.Warn("no credentials configured, every request will be denied")
	}
	logger.Info("runtime ready",
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Str("dedup", string(dedup)),
		logpkg.Int("grants", rt.policy.Len()))
	return rt, nil
}

func openStore(ctx context.Context, sc cfgpkg.StorageConfig, logger logpkg.Logger) (storage.Gateway, error) {
	switch sc.Backend {
	case cfgpkg.BackendMemory:
		logger.Warn("memory backend selected, messages are lost on restart")
		return memory.New(), nil

	case cfgpkg.BackendPostgres, cfgpkg.BackendMySQL:
		dialect, err := sqlstore.ParseDialect(sc.Backend)
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.Open(sqlstore.Options{
			Dialect:         dialect,
			DSN:             sc.DSN,
			MaxOpenConns:    sc.MaxOpenConns,
			MaxIdleConns:    sc.MaxIdleConns,
			ConnMaxLifetime: time.Duration(sc.ConnMaxLifetimeSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("runtime: connect %s: %w", dialect, err)
		}
		if sc.AutoMigrate {
			applied, err := store.Migrate(ctx)
			if err != nil {
				_ = store.Close()
				return nil, err
			}
			logger.Info("schema migrated", logpkg.Int("applied", len(applied)))
		}
		return store, nil

	case cfgpkg.BackendPebble, "":
		fsync, err := pebblestore.ParseFsyncMode(sc.Fsync)
		if err != nil {
			return nil, err
		}
		dir := cfgpkg.Config{Storage: sc}.StoreDir()
		logger.Info("opening pebble store", logpkg.Str("dir", dir))
		return pebblestore.OpenStore(pebblestore.Options{
			DataDir:       dir,
			Fsync:         fsync,
			FsyncInterval: time.Duration(sc.FsyncIntervalMs) * time.Millisecond,
			Metrics:       pebblestore.PrometheusMetrics(),
			Logger:        logger.WithComponent("pebble"),
		})
	}
	return nil, fmt.Errorf("runtime: unknown storage backend %q", sc.Backend)
}

// Close releases the store and the notifier.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// CheckHealth pings the store.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.engine == nil {
		return errors.New("runtime not open")
	}
	return r.engine.Ping(ctx)
}

func (r *Runtime) Engine() *lifecycle.Engine { return r.engine }

func (r *Runtime) Policy() *access.Policy { return r.policy }

// ValidQueueName reports whether name matches the configured pattern.
func (r *Runtime) ValidQueueName(name string) bool { return r.queueName.MatchString(name) }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
