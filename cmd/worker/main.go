package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.CheckoutTable == "" || cfg.WorkerAPIToken == "" {
		zl.Fatal("CHECKOUT_TABLE and WORKER_API_TOKEN are required")
	}

	clients, err := aws.NewClients(context.Background())
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	p := NewProcessor(
		idempotency.NewStore(clients.DynamoDB, cfg.CheckoutTable, cfg.CheckoutTTL),
		api.New(cfg.APIBaseURL, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(zl)),
		cfg.WorkerAPIToken,
		aws.NewMetrics(clients.CloudWatch, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled),
		zl,
	)

	// RUN_LOCAL=true feeds one message from LOCAL_SQS_BODY through the handler.
	if cfg.RunLocal {
		body := localBody()
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			zl.Fatal("local reconcile failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}

func localBody() string {
	if b := os.Getenv("LOCAL_SQS_BODY"); b != "" {
		return b
	}
	return `{"idempotency_key":"local-key-1","order_id":"local-order-1","item_id":"local-item-1","quantity":1}`
}
