// Command finder runs the influencer discovery service: an HTTP API over
// the search engine with credential persistence, a tiered result cache,
// and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/cache"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/config"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/credential"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/finder"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/httpapi"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/keywords"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/platform"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := credential.OpenStore(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	pool, err := buildPool(ctx, cfg, store)
	if err != nil {
		return err
	}

	resultCache := cache.New(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries)
	defer resultCache.Close()

	client := platform.NewClient(cfg.UpstreamTimeout)

	var expander keywords.Expander
	if cfg.GeminiAPIKey != "" {
		exp, err := keywords.NewGeminiExpander(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini unavailable, keyword expansion falls back to local variants",
				slog.Any("error", err))
		} else {
			expander = exp
			slog.Info("gemini keyword expansion enabled", slog.String("model", cfg.GeminiModel))
		}
	} else {
		slog.Info("no gemini key configured, using local keyword variants")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "finder_cache_hits",
			Help: "Result cache hits since startup.",
		}, func() float64 {
			hits, _ := resultCache.Stats()
			return float64(hits)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "finder_cache_misses",
			Help: "Result cache misses since startup.",
		}, func() float64 {
			_, misses := resultCache.Stats()
			return float64(misses)
		}),
	)
	finder.RegisterMetrics(reg)

	engine := finder.New(client, pool, resultCache, expander, slog.Default(), finder.DefaultOptions())
	handler := httpapi.NewHandler(engine, pool, resultCache, slog.Default())
	app := httpapi.NewApp(handler, slog.Default(), reg)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", cfg.ListenAddr))
		errCh <- app.Listen(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutCtx)
}

// buildPool merges configured credentials with persisted quota state and
// wires the pool's persistence hook.
func buildPool(ctx context.Context, cfg *config.Config, store *credential.Store) (*credential.Pool, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	stored, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]credential.Credential, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	for i := range creds {
		prev, ok := byID[creds[i].ID]
		if !ok || prev.Key != creds[i].Key {
			// New or rotated key starts fresh.
			continue
		}
		creds[i].Status = prev.Status
		creds[i].QuotaUsed = prev.QuotaUsed
		creds[i].LastError = prev.LastError
		creds[i].LastUsedAt = prev.LastUsedAt
	}

	pool := credential.NewPool(creds)
	pool.OnChange(func(c credential.Credential) {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, c); err != nil {
			slog.Warn("credential persist failed",
				slog.String("id", c.ID),
				slog.Any("error", err))
		}
	})

	for _, c := range pool.Snapshot() {
		slog.Info("credential loaded",
			slog.String("id", c.ID),
			slog.String("label", c.Label),
			slog.String("status", string(c.Status)),
			slog.Int64("quota_used", c.QuotaUsed),
			slog.Int64("quota_limit", c.QuotaLimit))
	}
	return pool, nil
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
