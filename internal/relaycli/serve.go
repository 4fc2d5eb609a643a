package relaycli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oremus-labs/ol-tool-relay/config"
	"github.com/oremus-labs/ol-tool-relay/internal/api"
	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/oremus-labs/ol-tool-relay/internal/handlers"
	"github.com/oremus-labs/ol-tool-relay/internal/invoke"
	"github.com/oremus-labs/ol-tool-relay/internal/logutil"
	"github.com/oremus-labs/ol-tool-relay/internal/metrics"
	"github.com/oremus-labs/ol-tool-relay/internal/redisx"
	"github.com/oremus-labs/ol-tool-relay/internal/relay"
	"github.com/oremus-labs/ol-tool-relay/internal/store"
	"github.com/oremus-labs/ol-tool-relay/internal/tools"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveViper = config.NewViper()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromViper(serveViper)
		if err != nil {
			return err
		}
		logutil.Configure(cfg.LogLevel, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("port", "", "Listen port (RELAY_PORT)")
	flags.String("manifest", "", "Tool manifest path (RELAY_TOOLS_MANIFEST)")
	flags.String("log-level", "", "Log level (LOG_LEVEL)")
	_ = serveViper.BindPFlag("RELAY_PORT", flags.Lookup("port"))
	_ = serveViper.BindPFlag("RELAY_TOOLS_MANIFEST", flags.Lookup("manifest"))
	_ = serveViper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
}

// app holds the assembled relay components.
type app struct {
	cfg        *config.Config
	registry   *relay.Registry
	dispatcher *relay.Dispatcher
	catalog    *tools.Catalog
	history    *store.Store
	redis      redis.UniversalClient
	bridge     *events.Bridge
	server     *api.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.registry = relay.NewRegistry()
	a.registry.OnChange(func(size int) {
		metrics.SetSubscribers("default", size)
	})
	a.dispatcher = relay.NewDispatcher(a.registry, relay.DispatcherOptions{
		WriteTimeout: cfg.WriteTimeout,
		Concurrency:  cfg.FanoutConcurrency,
		Logger:       logutil.Component("dispatcher"),
	})

	manifest, err := loadManifest(cfg.ToolsManifest)
	if err != nil {
		return nil, err
	}
	a.catalog = tools.NewCatalog(map[string]tools.Handler{
		"add": tools.Add(),
		"get-alerts": tools.NewAlerts(tools.AlertsOptions{
			BaseURL:   cfg.NWSBaseURL,
			UserAgent: cfg.NWSUserAgent,
			CacheTTL:  cfg.WeatherCacheTTL,
			CacheSize: cfg.WeatherCacheSize,
		}),
	})
	skipped, err := a.catalog.Load(manifest)
	if err != nil {
		return nil, fmt.Errorf("load tool manifest: %w", err)
	}
	if len(skipped) > 0 {
		logutil.Warn("manifest declares tools without an implementation", nil, map[string]interface{}{"skipped": skipped})
	}

	if a.history, err = store.Open(cfg.HistoryDSN, cfg.HistoryDriver); err != nil {
		return nil, fmt.Errorf("open invocation history: %w", err)
	}

	a.redis, err = redisx.NewClient(ctx, redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.bridge = events.NewBridge(events.BridgeOptions{
		Client:  a.redis,
		Logger:  logutil.Component("bridge"),
		Channel: cfg.EventsChannel,
	})

	svc := invoke.New(a.catalog, a.dispatcher, invoke.Options{
		ToolTimeout: cfg.ToolTimeout,
		Logger:      logutil.Component("invoke"),
		Mirror:      a.bridge,
		History:     a.history,
	})
	h := handlers.New(svc, a.catalog, a.registry, a.history, handlers.Options{
		Channel: relay.ChannelOptions{
			WriteTimeout:      cfg.WriteTimeout,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
	})
	a.server = api.NewServer(h, api.Options{
		APIToken:    cfg.APIToken,
		CORSOrigins: cfg.CORSOrigins,
	})
	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logutil.Warn("failed to close invocation history", err, nil)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.bridge != nil {
		go a.bridge.Run(ctx, func(ctx context.Context, evt events.Event) {
			a.dispatcher.Publish(ctx, evt)
		})
	}
	if cfg.WatchManifest && cfg.ToolsManifest != "" {
		go func() {
			if err := tools.Watch(ctx, cfg.ToolsManifest, a.catalog, logutil.Component("manifest")); err != nil {
				logutil.Warn("manifest watcher stopped", err, map[string]interface{}{"path": cfg.ToolsManifest})
			}
		}()
	}

	srv, err := a.server.Start(cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	logutil.Info("tool relay listening", map[string]interface{}{
		"addr":    cfg.Addr(),
		"tools":   len(a.catalog.List()),
		"redis":   a.bridge != nil,
		"history": cfg.HistoryDriver,
	})

	<-ctx.Done()
	logutil.Info("shutting down relay", nil)

	closed := a.dispatcher.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logutil.Warn("server forced to shutdown", err, nil)
	}
	logutil.Info("relay stopped", map[string]interface{}{"closed_subscribers": closed})
	return nil
}

func loadManifest(path string) (*tools.Manifest, error) {
	if path == "" {
		return tools.DefaultManifest()
	}
	return tools.LoadManifest(path)
}
