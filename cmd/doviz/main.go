
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/comparison"
	"github.com/Armin-kho/doviz-board/internal/config"
	"github.com/Armin-kho/doviz-board/internal/goldprice"
	"github.com/Armin-kho/doviz-board/internal/httpapi"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/regional"
	"github.com/Armin-kho/doviz-board/internal/scheduler"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/sources"
	"github.com/Armin-kho/doviz-board/internal/telegram"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	root := logger.New("doviz", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{}

	// Sources
	feed := sources.NewAhlatciFeed(client, cfg.Sources.AhlatciURL, cfg.Sources.AhlatciFeedTTL)
	srcLog := root.Named("sources")
	registry := sources.NewRegistry(cfg.Sources.Timeout, srcLog,
		sources.NewAhlatci(feed),
		sources.NewHarem(client, cfg.Sources.TruncgilURL),
		sources.NewHakan(client, cfg.Sources.TCMBURL, cfg.Sources.TruncgilURL, srcLog),
		sources.NewCarsi(client, cfg.Sources.ExchangeRateURL, feed, srcLog),
	)

	// World gold
	goldLog := root.Named("worldgold")
	var goldOpts []cache.Option[goldprice.WorldGoldPrice]
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		store := cache.NewRedisStore[goldprice.WorldGoldPrice](rdb, cfg.Redis.Key, cfg.Redis.Retention)
		goldOpts = append(goldOpts, cache.WithStore[goldprice.WorldGoldPrice](store, func(err error) {
			goldLog.Warn("redis: %v", err)
		}))
		goldLog.Info("sharing cache via redis %s", cfg.Redis.Addr)
	}
	resolver := goldprice.NewResolver(
		cache.New[goldprice.WorldGoldPrice]("world-gold", cfg.WorldGold.TTL, goldOpts...),
		cfg.WorldGold.Timeout, goldLog,
		goldprice.Chain(client, feed, goldprice.ChainConfig{
			MetalPriceAPIKey: cfg.WorldGold.MetalPriceAPIKey,
			GoldAPIToken:     cfg.WorldGold.GoldAPIToken,
			MetalsAPIKey:     cfg.WorldGold.MetalsAPIKey,
			ManualPrice:      cfg.WorldGold.ManualPrice,
		})...,
	)

	// Regional quote page
	var reg comparison.RegionalSource
	if cfg.Regional.Enabled {
		rc := regional.Config{
			URL:             cfg.Regional.URL,
			IstanbulID:      cfg.Regional.IstanbulID,
			LondonID:        cfg.Regional.LondonID,
			USDCandidateIDs: cfg.Regional.USDCandidateIDs,
			UserAgent:       cfg.Regional.UserAgent,
			NavigateTimeout: cfg.Regional.NavigateTimeout,
			WaitTimeout:     cfg.Regional.WaitTimeout,
		}
		reg = regional.NewFetcher(
			regional.NewChromeBrowser(cfg.Regional.ChromePath), rc,
			cache.New[regional.RegionalGoldQuote]("regional", cfg.Regional.TTL),
			root.Named("regional"),
		)
	}

	engine := comparison.NewEngine(reg,
		sources.NewTCMBRates(client, cfg.Sources.TCMBURL, cfg.Sources.TCMBTimeout),
		resolver, root.Named("comparison"))

	trusted := make([]sources.SourceName, 0, len(cfg.Sources.TrustedGold))
	for _, s := range cfg.Sources.TrustedGold {
		trusted = append(trusted, sources.SourceName(s))
	}
	svc := snapshot.NewService(registry, engine, resolver,
		cache.New[*snapshot.Snapshot]("snapshot", cfg.Snapshot.TTL),
		snapshot.Config{TrustedGold: trusted, CycleTimeout: cfg.Snapshot.CycleTimeout},
		root.Named("snapshot"))

	// HTTP
	srv := httpapi.NewServer(svc, httpapi.Options{
		Addr:         cfg.Server.Addr(),
		StaticDir:    cfg.Server.StaticDir,
		AllowOrigins: cfg.Server.AllowOrigins,
		Debug:        cfg.Debug,
	}, root.Named("http"))
	svc.Subscribe(srv.Hub().Publish)

	// Telegram
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("telegram init error: %v", err)
		}
		api.Debug = cfg.Debug
		tgLog := root.Named("telegram")
		tgCfg := telegram.Config{
			ChatIDs:  cfg.Telegram.ChatIDs,
			AdminIDs: cfg.Telegram.AdminIDs,
			PostMode: cfg.Telegram.PostMode,
			Template: cfg.Telegram.Template,
		}
		tgLog.Info("authorized as @%s", api.Self.UserName)

		if len(tgCfg.ChatIDs) > 0 {
			pub := telegram.NewPublisher(api, tgCfg, tgLog)
			svc.Subscribe(func(s *snapshot.Snapshot) {
				go pub.Publish(ctx, s)
			})
		}
		if cfg.Telegram.Commands {
			u := tgbotapi.NewUpdate(0)
			u.Timeout = 30
			u.AllowedUpdates = []string{"message", "callback_query"}
			updates := api.GetUpdatesChan(u)
			defer api.StopReceivingUpdates()
			go telegram.NewBot(api, svc, tgCfg, tgLog).Run(ctx, updates)
		}
	}

	// Initial refresh; the server starts even if it fails.
	initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if _, err := svc.Refresh(initCtx); err != nil {
		root.Warn("initial refresh failed: %v", err)
	}
	cancel()

	if cfg.Schedule.Enabled {
		sched := scheduler.New(svc, scheduler.Config{
			SnapshotEveryMinutes: cfg.Schedule.SnapshotEveryMinutes,
			WorldGoldEveryHours:  cfg.Schedule.WorldGoldEveryHours,
		}, root.Named("scheduler"))
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		root.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			root.Error("server: %v", err)
			stop()
			os.Exit(1)
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		root.Warn("shutdown: %v", err)
	}
}
