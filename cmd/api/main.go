package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-cimit-stub/internal/app"
	"github.com/imrishuroy/go-cimit-stub/internal/aws"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
)

func setupRouter(a *app.App) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	h := a.Handler()
	if err := h.Register(r, h.Routes()); err != nil {
		return nil, err
	}
	return r, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.Region, cfg.EndpointOverride)
	if err != nil {
		logger.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, clients, logger)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	r, err := setupRouter(a)
	if err != nil {
		logger.Error("invalid route table", "error", err)
		os.Exit(1)
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		runLocal(logger, cfg.Addr, r)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func runLocal(logger *slog.Logger, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("running local server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("local server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
