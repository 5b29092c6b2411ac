// Command nutracoach runs the nutrition coaching HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nutracoach/pkg/auth"
	"nutracoach/pkg/cache"
	"nutracoach/pkg/chat"
	"nutracoach/pkg/config"
	"nutracoach/pkg/fooddata"
	"nutracoach/pkg/httpapi"
	"nutracoach/pkg/llm"
	"nutracoach/pkg/llm/factory"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/nutrition"
	"nutracoach/pkg/store"
	"nutracoach/pkg/tools"
	"nutracoach/pkg/worker"
)

func main() {
	if err := run(); err != nil {
		logx.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "nutracoach.yaml", "path to YAML config file")
	flag.Parse()

	logger := logx.NewLogger("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := store.Initialize(cfg.Database.Path); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Database close failed: %v", err)
		}
	}()
	ops := store.Ops()

	c := cache.New()
	recorder := metrics.NewPrometheusRecorder()

	var resolver nutrition.FoodResolver
	if cfg.FoodData.APIKey != "" {
		resolver = fooddata.NewClient(&cfg.FoodData)
	} else {
		logger.Warn("No USDA API key configured; unknown foods cannot be resolved")
	}
	diary := nutrition.NewDiaryService(ops, c, resolver, recorder)

	client, err := factory.NewClient(&cfg.LLM)
	if err != nil {
		return err
	}
	logger.Info("LLM provider: %s, model: %s", cfg.LLM.Provider, client.GetModelName())

	provider := tools.NewProvider(tools.ToolContext{Store: ops})
	dispatcher := tools.NewDispatcher(provider)
	systemPrompt := chat.BuildSystemPrompt(provider.PromptDocumentation())
	defs := provider.Definitions()

	// The synchronous chat path surfaces provider failures directly; the
	// background task path retries them.
	loop := chat.NewLoop(client, dispatcher, defs, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	chatSvc := chat.NewService(loop, ops, c, recorder, systemPrompt, cfg.LLM.Provider)

	asyncLoop := chat.NewLoop(llm.NewRetryableClient(client), dispatcher, defs, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	asyncSvc := chat.NewService(asyncLoop, ops, c, recorder, systemPrompt, cfg.LLM.Provider)

	pool := worker.NewPool(asyncSvc, cfg.Worker)

	var usage *metrics.QueryService
	if cfg.Metrics.PrometheusURL != "" {
		usage, err = metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			logger.Warn("Usage reporting disabled: %v", err)
		}
	}

	server := httpapi.NewServer(&cfg.Server, httpapi.Deps{
		Ops:      ops,
		Tokens:   auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL),
		Chat:     chatSvc,
		Diary:    diary,
		Pool:     pool,
		Usage:    usage,
		Provider: cfg.LLM.Provider,
		Recorder: recorder,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	defer pool.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
