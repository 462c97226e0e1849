package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-cimit-stub/internal/app"
	"github.com/imrishuroy/go-cimit-stub/internal/aws"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
)

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
	h := NewHandler(a.Issuer, a.Metrics, logger)

	// If RUN_LOCAL=true, invoke once with LOCAL_EVENT and print the result.
	if cfg.RunLocal {
		body, err := invokeLocal(context.Background(), h, cfg.LocalEvent)
		if err != nil {
			logger.Error("invalid LOCAL_EVENT", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(body))
		return
	}

	lambda.Start(h.Handle)
}

const defaultLocalEvent = `{"user_id":"local-user"}`

// invokeLocal runs one invocation with event, or a default event when empty.
func invokeLocal(ctx context.Context, h *Handler, event string) ([]byte, error) {
	if event == "" {
		event = defaultLocalEvent
	}
	var req IssueRequest
	if err := json.Unmarshal([]byte(event), &req); err != nil {
		return nil, err
	}
	out, _ := h.Handle(ctx, req)
	return json.Marshal(out)
}
