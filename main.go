package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/config"
	"github.com/sitelens/sitelens-engine/pkg/funnel"
	"github.com/sitelens/sitelens-engine/pkg/handlers"
	"github.com/sitelens/sitelens-engine/pkg/mcp"
	"github.com/sitelens/sitelens-engine/pkg/middleware"
	"github.com/sitelens/sitelens-engine/pkg/services"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("events_table", cfg.Warehouse.EventsTable),
		zap.Int("default_lookback_days", cfg.Template.DefaultLookbackDays),
		zap.Bool("reject_suspicious_values", cfg.Template.RejectSuspiciousValues),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
	)

	engine := sqltemplate.NewEngine(cfg.EngineOptions())
	compiler := funnel.NewCompiler(cfg.FunnelOptions())
	lookback := time.Duration(cfg.Template.DefaultLookbackDays) * 24 * time.Hour

	templateService := services.NewTemplateService(engine, services.TemplateServiceConfig{
		RejectSuspiciousValues: cfg.Template.RejectSuspiciousValues,
	}, logger)
	funnelService := services.NewFunnelService(compiler, lookback, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTemplatesHandler(templateService, logger).RegisterRoutes(mux)
	handlers.NewFunnelHandler(funnelService, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("sitelens-engine", cfg.Version, logger)
		mcpServer.RegisterTools(templateService, funnelService)
		mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting sitelens-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSEnabled()),
		)
		var err error
		if cfg.TLSEnabled() {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
		<-errCh
	}
}

// newLogger builds a development logger for local runs and a JSON production
// logger everywhere else, both at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
