package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"komandir/internal/command"
	"komandir/internal/commands"
	"komandir/internal/config"
	"komandir/internal/discord"
	"komandir/internal/dispatch"
	"komandir/internal/observer"
	"komandir/internal/shard"
	"komandir/internal/storage"
	"komandir/internal/throttle"
	"komandir/internal/version"
)

func main() {
	log.Printf("[INFO] Starting %s %s...", version.AppName, version.Short())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	logger := observer.NewLogger(observer.Config{Path: cfg.LogPath, Console: true})
	defer logger.Close()
	sink := observer.Multi{logger, storage.HistorySink{Store: store}}

	nc, err := nats.Connect(cfg.NatsURL,
		nats.Name(version.AppName),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Fatal("[ERR] Failed to connect to NATS: ", err)
	}
	defer nc.Close()

	coord := shard.NewCoordinator(
		shard.Descriptor{ID: cfg.ShardID, Total: cfg.ShardCount},
		nc, sink, cfg.ShardEvalTimeout,
	)
	defer coord.Shutdown()

	throttles := throttle.NewStore()
	go throttle.RunSweeper(ctx, throttles, time.Minute)

	registry := command.NewRegistry()
	dispatcher := &dispatch.Dispatcher{
		Registry:   registry,
		Normalizer: &dispatch.Normalizer{Prefix: cfg.Prefix},
		Controller: dispatch.NewController(throttles, cfg.AdminIDs, dispatch.RateLimits{
			GlobalMax:    cfg.GlobalRateLimit,
			GlobalWindow: cfg.GlobalRateWindow,
			UserMax:      cfg.UserRateLimit,
			UserWindow:   cfg.UserRateWindow,
			GuildMax:     cfg.GuildRateLimit,
			GuildWindow:  cfg.GuildRateWindow,
		}),
		Executor: dispatch.NewExecutor(cfg.HandlerTimeout, sink, cfg.ShardID),
		Sink:     sink,
		ShardID:  cfg.ShardID,
	}

	bot := discord.NewBot(cfg, dispatcher, registry, coord, sink)

	// The full command list, built explicitly. Reload rebuilds the same
	// table, so the builder is self-referential through the closure.
	var build func() []*command.Spec
	build = func() []*command.Spec {
		return []*command.Spec{
			commands.Ping(),
			commands.Help(registry),
			commands.Shards(coord),
			commands.Uptime(coord),
			commands.Stats(store),
			commands.Reload(registry, build),
		}
	}
	for _, spec := range build() {
		if err := registry.Register(spec); err != nil {
			log.Fatal(err)
		}
	}

	shard.RegisterDefaultOps(coord, bot, bot.StartedAt())
	if err := coord.Serve(); err != nil {
		log.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	case <-ctx.Done():
	}

	log.Println("[INFO] Bot exited cleanly")
}
