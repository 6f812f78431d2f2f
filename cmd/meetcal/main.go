package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"meetcal/internal/cache"
	"meetcal/internal/config"
	"meetcal/internal/feed"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
	"meetcal/internal/scheduler"
	"meetcal/internal/store"
	"meetcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	team       string
}

func main() {
	flags := parseFlags()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "err", err.Error())
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Setup(os.Stderr, conf.Log.Format, appLog.ParseLevel(conf.Log.Level))
	appLog.Info("meetcal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"store", conf.Store.Kind,
		"cache_backend", conf.Cache.Backend,
		"cache_ttl", conf.Cache.TTL.String(),
		"prune", conf.Cache.PruneCron,
		"once", flags.once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("meetcal failed", err)
		os.Exit(1)
	}
	appLog.Info("meetcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	src, closeStore, err := openStore(ctx, conf.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	storage, err := openCache(conf.Cache)
	if err != nil {
		return err
	}

	svc := feed.NewService(feed.Config{
		Store:        src,
		Storage:      storage,
		Options:      conf.Feed.Options(),
		TTL:          conf.Cache.TTL,
		CacheOptions: []cache.Option{cache.WithMetrics(cache.NewMetrics())},
	})

	if flags.once {
		return runOnce(ctx, svc, flags.team)
	}

	pruner, err := scheduler.NewPruner(svc.Storage(), conf.Cache.PruneCron, conf.Cache.MaxAge)
	if err != nil {
		return fmt.Errorf("cache pruner: %w", err)
	}
	if pruner != nil {
		if err := pruner.Start(); err != nil {
			return fmt.Errorf("cache pruner: %w", err)
		}
		defer pruner.Stop()
	}

	return web.NewServer(conf, svc).Run(ctx)
}

// runOnce writes a single feed to stdout and checks that it parses back.
func runOnce(ctx context.Context, svc *feed.Service, team string) error {
	doc, ok := svc.Calendar(ctx, team)
	if !ok {
		return fmt.Errorf("no meetings to publish for team %q", team)
	}

	parsed, err := ics.ParseFeed([]byte(doc))
	if err != nil {
		return fmt.Errorf("generated feed does not parse: %w", err)
	}
	appLog.Info("feed generated", "team", team, "events", len(parsed.Events), "bytes", len(doc))

	_, err = os.Stdout.WriteString(doc)
	return err
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, func(), error) {
	noop := func() {}
	switch sc.Kind {
	case "postgres":
		connCtx, cancel := context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
		pool, err := store.OpenPool(connCtx, sc.DSN)
		if err != nil {
			return nil, noop, err
		}
		appLog.Info("connected to postgres")
		return store.NewPostgres(pool), pool.Close, nil
	case "remote":
		r, err := store.NewRemote(sc.URL, sc.CacheDir, sc.Timeout)
		return r, noop, err
	default:
		y, err := store.NewYAMLFile(sc.Path)
		return y, noop, err
	}
}

func openCache(cc config.CacheConfig) (cache.Storage, error) {
	if cc.Backend == "file" {
		f, err := cache.NewFile(cc.Dir)
		if err != nil {
			return nil, fmt.Errorf("feed cache: %w", err)
		}
		return f, nil
	}
	return cache.NewMemory(), nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/meetcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print one feed to stdout and exit")
	flag.StringVar(&cfg.team, "team", "", "Team for -once (empty for all teams)")

	flag.Parse()

	return cfg
}
