package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/fixflow/agent"
	"github.com/BaSui01/fixflow/api/handlers"
	"github.com/BaSui01/fixflow/config"
	"github.com/BaSui01/fixflow/internal/metrics"
	"github.com/BaSui01/fixflow/internal/telemetry"
	"github.com/BaSui01/fixflow/llm"
	"github.com/BaSui01/fixflow/llm/openaicompat"
	"github.com/BaSui01/fixflow/tools"
	"github.com/BaSui01/fixflow/workflow"
)

// Server assembles the workflow engine, HTTP API, and metrics endpoint.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	redisClient *redis.Client
	provider    llm.Provider
	engine      *workflow.Engine

	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer wires all components from the configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, otel: otel}

	store, err := s.buildStore()
	if err != nil {
		return nil, err
	}

	engineOpts := []workflow.EngineOption{
		workflow.WithEngineLogger(logger),
		workflow.WithEngineMetrics(metrics.Default()),
		workflow.WithEngineMaxIterations(cfg.Workflow.MaxFixAttempts),
	}

	if cfg.LLM.APIKey != "" {
		s.provider = openaicompat.New(openaicompat.Config{
			ProviderName: cfg.LLM.Provider,
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
			Timeout:      cfg.LLM.Timeout,
		}, logger)

		verifier, err := s.buildVerifier()
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, workflow.WithVerifier(verifier))
	} else {
		logger.Warn("no LLM API key configured, running without backend-driven verification")
	}

	s.engine = workflow.NewEngine(store, engineOpts...)

	s.buildHTTPServers()
	return s, nil
}

// buildVerifier assembles the synchronous verification agent from the
// sandbox and agent configuration.
func (s *Server) buildVerifier() (workflow.Verifier, error) {
	sandbox, err := tools.NewSandbox(s.cfg.Sandbox.Root)
	if err != nil {
		return nil, fmt.Errorf("sandbox root %q: %w", s.cfg.Sandbox.Root, err)
	}
	check := strings.Fields(s.cfg.Sandbox.CheckCommand)
	if len(check) == 0 {
		return nil, fmt.Errorf("sandbox check command is empty")
	}

	def := agent.VerifierDefinition(s.cfg.LLM.Model, sandbox, check[0], check[1:]...)
	def.MaxIterations = s.cfg.Agent.MaxIterations
	def.MaxTokens = s.cfg.Agent.MaxTokens
	def.Temperature = s.cfg.Agent.Temperature

	sink := agent.NewChannelSink(s.cfg.Agent.UsageBuffer, s.logger)
	go s.drainUsage(sink)

	runner := agent.NewRunner(s.provider,
		agent.WithLogger(s.logger),
		agent.WithMetrics(metrics.Default()),
		agent.WithUsageSink(sink),
	)
	return &agentVerifier{runner: runner, def: def}, nil
}

// drainUsage logs usage events so the sink never fills up and drops.
func (s *Server) drainUsage(sink *agent.ChannelSink) {
	for ev := range sink.Events() {
		s.logger.Debug("token usage",
			zap.String("model", ev.Model),
			zap.Int("prompt_tokens", ev.PromptTokens),
			zap.Int("completion_tokens", ev.CompletionTokens),
			zap.Bool("estimated", ev.Estimated))
	}
}

// buildStore selects the workflow store backend.
func (s *Server) buildStore() (workflow.Store, error) {
	switch s.cfg.Workflow.Store {
	case "redis":
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
		s.logger.Info("using redis workflow store", zap.String("addr", s.cfg.Redis.Addr))
		return workflow.NewRedisStore(s.redisClient, s.cfg.Workflow.TTL), nil
	case "memory":
		s.logger.Info("using in-memory workflow store")
		return workflow.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown workflow store %q", s.cfg.Workflow.Store)
	}
}

func (s *Server) buildHTTPServers() {
	healthHandler := handlers.NewHealthHandler(s.logger)
	if s.redisClient != nil {
		healthHandler.RegisterCheck(handlers.CheckFunc{
			CheckName: "redis",
			Fn: func(ctx context.Context) error {
				return s.redisClient.Ping(ctx).Err()
			},
		})
	}
	if s.provider != nil {
		healthHandler.RegisterCheck(handlers.CheckFunc{
			CheckName: "backend",
			Fn: func(ctx context.Context) error {
				_, err := s.provider.HealthCheck(ctx)
				return err
			},
		})
	}

	mux := http.NewServeMux()
	handlers.NewWorkflowHandler(s.engine, s.logger).Register(mux)
	healthHandler.Register(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
}

// Start launches the HTTP and metrics listeners.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.metricsServer.Addr))
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM and then drains everything
// within the configured shutdown timeout.
func (s *Server) WaitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	s.logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown error", zap.Error(err))
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("redis close error", zap.Error(err))
		}
	}
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}
}
