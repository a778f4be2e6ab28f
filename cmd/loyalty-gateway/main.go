package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"loyaltywallet/credentials"
	"loyaltywallet/gateway/config"
	"loyaltywallet/gateway/middleware"
	"loyaltywallet/gateway/routes"
	"loyaltywallet/observability/logging"
	telemetry "loyaltywallet/observability/otel"
	"loyaltywallet/wallet"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to gateway configuration (.yaml or .toml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Logging is not configured yet; fall back to the default JSON setup.
		logging.Setup("loyalty-gateway", os.Getenv("LOYALTY_ENV"), logging.FileOptions{}).
			Error("load config", "error", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv("LOYALTY_ENV"))
	logger := logging.Setup(cfg.Observability.ServiceName, env, logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(),
		telemetry.FromEnv(cfg.Observability.ServiceName, env, cfg.Observability.Tracing))
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cred, err := credentials.Load(cfg.Credentials.Path)
	if err != nil {
		logger.Error("load service account credentials", "path", cfg.Credentials.Path, "error", err)
		os.Exit(1)
	}
	logger.Info("service account loaded",
		"client_email", cred.ClientEmail,
		logging.MaskField("private_key_id", cred.PrivateKeyID),
	)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)

	// The token source lives for the whole process and caches access tokens
	// until shortly before expiry.
	httpClient := wallet.AuthorizedClient(context.Background(), cred.JWTConfig(), cfg.Wallet.RequestTimeout)
	client, err := wallet.NewIssuerClient(context.Background(), cfg.Wallet.BaseURL, httpClient, obs)
	if err != nil {
		logger.Error("configure issuer client", "error", err)
		os.Exit(1)
	}

	signer, err := wallet.NewLinkSigner(cred, wallet.LinkOptions{
		IssuerID:  cfg.Wallet.IssuerID,
		Audience:  cfg.Wallet.Audience,
		Origins:   cfg.Wallet.Origins,
		URLPrefix: cfg.Wallet.SaveURLPrefix,
	})
	if err != nil {
		logger.Error("configure link signer", "error", err)
		os.Exit(1)
	}

	svc, err := wallet.NewService(wallet.ServiceConfig{
		IssuerID:    cfg.Wallet.IssuerID,
		ClassSuffix: cfg.Wallet.ClassSuffix,
		Style: wallet.Style{
			HexBackgroundColor:  cfg.Wallet.Style.HexBackgroundColor,
			LogoURI:             cfg.Wallet.Style.LogoURI,
			BackgroundImageURI:  cfg.Wallet.Style.BackgroundImageURI,
			BackgroundImageAlt:  cfg.Wallet.Style.BackgroundImageAlt,
			BackgroundImageLang: cfg.Wallet.Style.Language,
		},
	}, client, signer, logger)
	if err != nil {
		logger.Error("configure wallet service", "error", err)
		os.Exit(1)
	}

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew,
	}, logger)

	router, err := routes.New(routes.Config{
		Cards:            svc,
		ErrorStatusCodes: cfg.HTTP.ErrorStatusCodes,
		Authenticator:    auth,
		Observability:    obs,
		ExposeMetrics:    cfg.Observability.Metrics,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderRequestID},
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("configure routes", "error", err)
		os.Exit(1)
	}

	handler := router
	if cfg.Observability.Tracing {
		handler = otelhttp.NewHandler(router, "loyalty-gateway")
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "error", err)
		os.Exit(1)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"address", listener.Addr().String(),
			"issuer_id", cfg.Wallet.IssuerID,
			"class_id", svc.ClassID(),
			"error_status_codes", cfg.HTTP.ErrorStatusCodes,
			"auth", cfg.Auth.Enabled,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
