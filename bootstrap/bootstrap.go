// Package bootstrap constructs and runs the Argus application: logger,
// configuration, analytics service and HTTP API, with signal-driven
// graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"argus/api"
	"argus/config"
	"argus/service"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// App holds the wired application components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Service *service.Analytics
	API     *api.API

	shutdownCh chan os.Signal
}

// InitLogger initializes the zap logger with colored console output.
func InitLogger() (*zap.Logger, *zap.SugaredLogger) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar()
}

// NewApp builds the application from the config file at configPath (empty
// string uses defaults and environment variables).
func NewApp(configPath string) (*App, error) {
	logger, sugar := InitLogger()
	sugar.Info("Argus telemetry service starting...")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// The worker runner is host-supplied; the stock binary runs without
	// one and correlates through the upstream endpoint.
	svc := service.New(cfg, nil, sugar)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Sugar:      sugar,
		Service:    svc,
		API:        api.New(svc, cfg.Server.Host, cfg.Server.Port, sugar),
		shutdownCh: make(chan os.Signal, 1),
	}, nil
}

// Run starts the service and API and blocks until SIGINT/SIGTERM, then
// shuts everything down gracefully.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Service.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.API.Start()
	}()

	signal.Notify(a.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-a.shutdownCh:
		a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			a.shutdown()
			return fmt.Errorf("API server failed: %w", err)
		}
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.API.Shutdown(shutdownCtx); err != nil {
		a.Sugar.Warnw("API shutdown error", "error", err)
	}
	a.Service.Stop()
	_ = a.Logger.Sync()
}
