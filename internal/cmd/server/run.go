package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/brugmanjoost/drumbeat/internal/config"
	"github.com/brugmanjoost/drumbeat/internal/runtime"
	grpcserver "github.com/brugmanjoost/drumbeat/internal/server/grpc"
	httpserver "github.com/brugmanjoost/drumbeat/internal/server/http"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// Options overrides parts of the resolved configuration. Empty fields keep
// the configured values.
type Options struct {
	// ConfigFile is an optional JSON, YAML or TOML file.
	ConfigFile string
	HTTPAddr   string
	GRPCAddr   string
	DataDir    string
	Backend    string
	LogLevel   string
	LogFormat  string
}

// apply copies the non-empty overrides onto cfg.
func (o Options) apply(cfg *cfgpkg.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTPAddr, o.HTTPAddr)
	set(&cfg.GRPCAddr, o.GRPCAddr)
	set(&cfg.Storage.DataDir, o.DataDir)
	set(&cfg.Storage.Backend, o.Backend)
	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.Format, o.LogFormat)
}

// LoadConfig resolves file, .env and environment layers, then applies the
// overrides and validates the result.
func LoadConfig(opts Options) (cfgpkg.Config, error) {
	cfg, err := cfgpkg.Resolve(opts.ConfigFile)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

// Run starts the HTTP server, and the gRPC health server when an address is
// configured, then blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	return RunWithConfig(ctx, cfg)
}

// RunWithConfig is Run for an already resolved configuration.
func RunWithConfig(ctx context.Context, cfg cfgpkg.Config) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		return err
	}
	// Redirect stdlib logs (e.g., Kafka and database drivers) to our logger
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer rt.Close()

	logger.Info("starting drumbeat server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("grpc", cfg.GRPCAddr),
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Str("level", cfg.Log.Level),
	)

	hsrv := httpserver.New(rt, logger)
	var gsrv *grpcserver.Server
	if cfg.GRPCAddr != "" {
		gsrv = grpcserver.New(rt, logger)
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			errCh <- fmt.Errorf("http: %w", err)
			stop()
		}
	}()
	if gsrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.ListenAndServe(sctx, cfg.GRPCAddr); err != nil && sctx.Err() == nil {
				errCh <- fmt.Errorf("grpc: %w", err)
				stop()
			}
		}()
	}

	<-sctx.Done()
	// Stop serving before the runtime closes the store.
	if gsrv != nil {
		gsrv.Close()
	}
	hsrv.Close()
	wg.Wait()
	close(errCh)
	logger.Info("drumbeat server stopped")
	return <-errCh
}
