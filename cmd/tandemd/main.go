// Command tandemd serves the two-phase reasoning chain over HTTP: one chat
// endpoint that runs a reasoning provider into a generation provider, plus
// health and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/haowjy/tandem-llm-go"
	"github.com/haowjy/tandem-llm-go/gateway"
	"github.com/haowjy/tandem-llm-go/observability"
	"github.com/haowjy/tandem-llm-go/providers/anthropic"
	"github.com/haowjy/tandem-llm-go/providers/deepseek"
	"github.com/haowjy/tandem-llm-go/providers/lorem"
	"github.com/haowjy/tandem-llm-go/providers/qwen"
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg, err := gateway.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.TelemetryURL != "" {
		tp, err := observability.Setup(context.Background(), cfg.TelemetryURL)
		if err != nil {
			log.Fatalf("failed to set up tracing: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	reasoning, generation, alternates, models := buildAdapters(cfg)
	srv := gateway.New(gateway.Options{
		Config:     cfg,
		Reasoning:  reasoning,
		Generation: generation,
		Alternates: alternates,
		Models:     models,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	log.Printf("tandemd listening on %s (lorem_mode=%v)", cfg.Address, cfg.LoremMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error during shutdown: %v", err)
		}
		log.Println("tandemd stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}
}

// buildAdapters assembles the pipeline phases from config. Lorem mode swaps
// both phases for the mock provider so the gateway runs without keys.
func buildAdapters(cfg *gateway.Config) (tandem.Adapter, tandem.Adapter, []tandem.Adapter, map[tandem.ProviderID]string) {
	if cfg.LoremMode {
		mock := lorem.NewProvider(lorem.Config{})
		models := map[tandem.ProviderID]string{tandem.ProviderLorem: "lorem-fast"}
		return mock, mock, nil, models
	}

	reasoning := deepseek.NewProvider(deepseek.Config{
		BaseURL:       cfg.DeepSeek.BaseURL,
		Model:         cfg.DeepSeek.Model,
		MaxTokens:     cfg.DeepSeek.MaxTokens,
		Timeout:       cfg.DeepSeek.Timeout,
		ReasoningOnly: true,
	})
	generation := anthropic.NewProvider(anthropic.Config{
		BaseURL:   cfg.Anthropic.BaseURL,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Timeout:   cfg.Anthropic.Timeout,
	})
	alternates := []tandem.Adapter{
		qwen.NewProvider(qwen.Config{
			BaseURL:   cfg.Qwen.BaseURL,
			Model:     cfg.Qwen.Model,
			MaxTokens: cfg.Qwen.MaxTokens,
			Timeout:   cfg.Qwen.Timeout,
		}),
		lorem.NewProvider(lorem.Config{}),
	}
	models := map[tandem.ProviderID]string{
		tandem.ProviderDeepSeek:  cfg.DeepSeek.Model,
		tandem.ProviderAnthropic: cfg.Anthropic.Model,
		tandem.ProviderQwen:      cfg.Qwen.Model,
		tandem.ProviderLorem:     "lorem-fast",
	}
	return reasoning, generation, alternates, models
}
