package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/haowjy/tandem-llm-go"
)

// Options configures a gateway server.
type Options struct {
	// Config carries the listen address and the per-provider fallback
	// keys.
	Config *Config

	// Reasoning is the adapter for the first pipeline phase.
	Reasoning tandem.Adapter

	// Generation is the default adapter for the second phase.
	Generation tandem.Adapter

	// Alternates are additional generation adapters selectable by model
	// name.
	Alternates []tandem.Adapter

	// Models names the default model each adapter serves, for cost
	// accounting when a request names none.
	Models map[tandem.ProviderID]string
}

// Server is the HTTP gateway: one chat endpoint in front of the two-phase
// pipeline, plus health and metrics.
type Server struct {
	cfg    *Config
	engine *gin.Engine

	reasoning  tandem.Adapter
	generation tandem.Adapter
	alternates []tandem.Adapter

	models   map[tandem.ProviderID]string
	fallback tandem.Credentials
	tracer   trace.Tracer
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	srv := &Server{
		cfg:        opts.Config,
		engine:     gin.Default(),
		reasoning:  opts.Reasoning,
		generation: opts.Generation,
		alternates: opts.Alternates,
		models:     opts.Models,
		fallback:   fallbackCredentials(opts.Config),
		tracer:     otel.Tracer("tandem/gateway"),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.engine.POST("/", s.chat)
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.engine,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fallbackCredentials collects the configured server-side keys. Request
// headers take precedence over these.
func fallbackCredentials(cfg *Config) tandem.Credentials {
	creds := make(tandem.Credentials)
	if cfg == nil {
		return creds
	}
	for id, key := range map[tandem.ProviderID]string{
		tandem.ProviderDeepSeek:  cfg.DeepSeek.APIKey,
		tandem.ProviderAnthropic: cfg.Anthropic.APIKey,
		tandem.ProviderQwen:      cfg.Qwen.APIKey,
	} {
		if key != "" {
			creds[id] = key
		}
	}
	return creds
}
