package serverrun

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfgpkg "github.com/qakkaio/qakka/internal/config"
	"github.com/qakkaio/qakka/internal/runtime"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	transporthttp "github.com/qakkaio/qakka/internal/transport/http"
	logpkg "github.com/qakkaio/qakka/pkg/log"
)

// small wrapper around os.Getenv; tests reassign it to fake the environment
var getenv = func(key string) string { return os.Getenv(key) }

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// Options configures Run.
type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	// ConfigPath, if set, is watched for changes (fsnotify) and each change
	// is passed to Runtime.ApplyConfig: maxShardSize applies on the
	// allocator's next check; leaseSeconds, maxRedeliveries, refreshBatch,
	// bufferTarget and the buffer refresh rate/burst apply to queue actors
	// created after the reload, not to running ones; bodyGCGraceMs is
	// recorded but the running body-GC job keeps its starting settings. See
	// internal/config.Watch.
	ConfigPath string
}

// Run opens the runtime, starts serving HTTP, and blocks until ctx is
// cancelled or a SIGTERM/SIGINT arrives.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	logCfg := logpkg.Config{
		Level:  getenvDefault("QAKKA_LOG_LEVEL", "info"),
		Format: getenvDefault("QAKKA_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
	}, procLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Start(); err != nil {
		return err
	}

	if opts.ConfigPath != "" {
		stopWatch, err := cfgpkg.Watch(opts.ConfigPath, rt.ApplyConfig, func(err error) {
			procLogger.Error("config reload failed", logpkg.Err(err))
		})
		if err != nil {
			procLogger.Error("config watch failed to start, continuing without hot-reload", logpkg.Err(err))
		} else {
			defer stopWatch()
		}
	}

	procLogger.Info("starting qakka server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("region", opts.Config.LocalRegion),
		logpkg.Str("data_dir", storeDir),
		logpkg.Str("config_path", opts.ConfigPath),
	)

	srv := transporthttp.NewServer(rt.Facade(), rt.Metrics(), procLogger)
	httpSrv := &http.Server{Addr: opts.HTTPAddr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-sctx.Done():
	case err := <-errCh:
		if err != nil {
			procLogger.Error("http server failed", logpkg.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		procLogger.Error("http server shutdown error", logpkg.Err(err))
	}
	return nil
}
