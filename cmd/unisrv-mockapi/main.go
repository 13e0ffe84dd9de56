package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unisrv/unisrv-cli/pkg/metrics"
	"github.com/unisrv/unisrv-cli/pkg/mockapi"
	"github.com/unisrv/unisrv-cli/pkg/version"
)

type userFlags map[string]string

func (u userFlags) String() string {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

func (u userFlags) Set(value string) error {
	name, password, ok := strings.Cut(value, ":")
	if !ok || name == "" || password == "" {
		return fmt.Errorf("expected NAME:PASSWORD, got %q", value)
	}
	u[name] = password
	return nil
}

func main() {
	users := userFlags{}
	var (
		listen    string
		debug     bool
		accessTTL time.Duration
		origins   string
	)
	flag.StringVar(&listen, "listen", "127.0.0.1:8080", "address to listen on")
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.DurationVar(&accessTTL, "access-ttl", 15*time.Minute, "lifetime of issued access tokens")
	flag.StringVar(&origins, "allow-origins", "", "comma separated origins allowed by CORS")
	flag.Var(users, "user", "account accepted by basic login, NAME:PASSWORD (repeatable)")
	flag.Parse()
	if len(users) == 0 {
		users["dev"] = "dev"
	}

	zl := setupLogger(debug)
	log := zl.Sugar()
	log.With("version", version.GetBuildInfo().Version).Infow("Starting unisrv mock API", "listen", listen, "users", users.String())

	opts := mockapi.Options{
		Users:     users,
		AccessTTL: accessTTL,
		Log:       zl,
		Debug:     debug,
	}
	if origins != "" {
		opts.AllowOrigins = strings.Split(origins, ",")
	}
	api := mockapi.New(opts)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.MetricsHandler())
	mux.Handle("/", api.Handler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Graceful shutdown failed", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Mock API server failed: %v", err)
	}
	log.Info("Mock API stopped")
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
