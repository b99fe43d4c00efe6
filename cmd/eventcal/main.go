package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"eventcal/internal/config"
	appLog "eventcal/internal/log"
	"eventcal/internal/snapshot"
	"eventcal/internal/store"
	"eventcal/internal/web"
)

const shutdownTimeout = 10 * time.Second

type flagConfig struct {
	configPath string
	listen     string
	snapshot   bool
}

func main() {
	appLog.Info("eventcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"log_level", conf.LogLevel,
		"storage_backend", conf.Storage.Backend,
		"snapshot_path", conf.Snapshot.Path,
		"snapshot_cron", conf.Snapshot.Cron,
		"basic_auth", conf.BasicAuth != nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("eventcal stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("eventcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	persister, closePersister := newPersister(conf.Storage)
	defer closePersister()

	st, err := store.Open(ctx, persister)
	if err != nil {
		return err
	}

	var pub *snapshot.Publisher
	if conf.Snapshot.Path != "" {
		pub = snapshot.NewPublisher(st, conf.Snapshot.Path)
		if err := pub.RunOnce(); err != nil {
			appLog.Error("initial snapshot failed", err, "path", conf.Snapshot.Path)
		}
	}
	if flags.snapshot {
		if pub == nil {
			return errors.New("-snapshot requires snapshot.path in config")
		}
		return nil
	}

	if pub != nil {
		if err := pub.Start(conf.Snapshot.Cron); err != nil {
			return err
		}
		defer pub.Stop()
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, st).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newPersister builds the configured storage backend and a func releasing it.
func newPersister(sc config.StorageConfig) (store.Persister, func()) {
	if sc.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		appLog.Info("using redis storage", "addr", sc.RedisAddr, "key", sc.Key)
		return store.NewRedisPersister(client, sc.Key), func() {
			if err := client.Close(); err != nil {
				appLog.Error("failed to close redis client", err)
			}
		}
	}
	appLog.Info("using file storage", "path", sc.Path)
	return store.NewFilePersister(sc.Path), func() {}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./eventcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Write one ICS snapshot and exit")

	flag.Parse()

	return cfg
}
