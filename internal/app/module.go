package app

import (
	"context"

	"github.com/tmarqs/inboxsync/internal/api"
	"github.com/tmarqs/inboxsync/internal/bus"
	"github.com/tmarqs/inboxsync/internal/config"
	"github.com/tmarqs/inboxsync/internal/console"
	"github.com/tmarqs/inboxsync/internal/feed"
	"github.com/tmarqs/inboxsync/internal/logging"
	"github.com/tmarqs/inboxsync/internal/state"
	intsync "github.com/tmarqs/inboxsync/internal/sync"
	"github.com/tmarqs/inboxsync/internal/view"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("inboxsync",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStore,
			provideProjection,
			provideAPIClient,
			provideReconciler,
			provideEngine,
			provideFeed,
			provideConsole,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStore() *state.Store {
	return state.New()
}

func provideProjection() *view.Projection {
	return view.New()
}

func provideAPIClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.APIURL, logger)
}

func provideReconciler(s *state.Store, p *view.Projection) *intsync.Reconciler {
	return intsync.NewReconciler(s, p)
}

func provideEngine(b *bus.Bus, rec *intsync.Reconciler, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(b, rec, logger)
}

func provideFeed(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *feed.Feed {
	return feed.New(cfg.FeedURL, b, logger)
}

func provideConsole(cfg *config.Config, client *api.Client, s *state.Store, p *view.Projection, b *bus.Bus, logger *zap.Logger) *console.Console {
	return console.New(client, s, p, b, logger, cfg.DefaultFilter)
}

func registerLifecycle(lc fx.Lifecycle, b *bus.Bus, engine *intsync.Engine, f *feed.Feed, cons *console.Console, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start the engine first so no feed event is dropped, then the
			// console's refetch subscription, then the transport.
			engine.Start(context.Background())
			cons.Start(context.Background())
			f.Start(context.Background())

			// Initial loads run in the background; realtime events arriving
			// meanwhile trigger their own refetch if the list is not there yet.
			go func() {
				ctx := context.Background()
				if err := cons.Refresh(ctx); err != nil {
					logger.Error("initial conversation load failed", zap.Error(err))
				}
				if err := cons.RefreshLabels(ctx); err != nil {
					logger.Warn("label catalogue load failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			f.Stop()
			cons.Stop()
			engine.Stop()
			if n := b.Dropped(); n > 0 {
				logger.Warn("events dropped on full subscriber buffers", zap.Uint64("count", n))
			}
			logger.Info("synchronizer stopped")
			return nil
		},
	})
}
