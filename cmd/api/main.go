package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/handlers"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/logger"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/session"
)

func setupRouter(cfg handlers.Config, zl *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(zl))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func credentialStore(ctx context.Context, cfg config.Config) (session.CredentialStore, error) {
	if cfg.CredentialStore == config.CredentialStoreRedis {
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(rdb, cfg.CredentialKey, 0), nil
	}
	return session.NewFileStore(cfg.CredentialFile), nil
}

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(zl))

	store, err := credentialStore(ctx, cfg)
	if err != nil {
		zl.Fatal("failed to init credential store", zap.Error(err))
	}
	sess := session.New(client, store, zl.Named("session"))
	sess.Restore(ctx)

	shop := cart.New()
	opts := []checkout.Option{checkout.WithLogger(zl.Named("checkout"))}

	// the journal, reconciliation queue and metrics are optional
	if cfg.CheckoutTable != "" || cfg.ReconcileQueueURL != "" || cfg.CloudWatchEnabled {
		clients, err := aws.NewClients(ctx)
		if err != nil {
			zl.Fatal("failed to init aws clients", zap.Error(err))
		}
		if cfg.CheckoutTable != "" {
			opts = append(opts, checkout.WithJournal(idempotency.NewStore(clients.DynamoDB, cfg.CheckoutTable, cfg.CheckoutTTL)))
		}
		if cfg.ReconcileQueueURL != "" {
			opts = append(opts, checkout.WithPublisher(aws.NewPublisher(clients.SQS, cfg.ReconcileQueueURL)))
		}
		opts = append(opts, checkout.WithMetrics(aws.NewMetrics(clients.CloudWatch, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)))
	}

	r := setupRouter(handlers.Config{
		Remote:   client,
		Session:  sess,
		Cart:     shop,
		Checkout: checkout.New(shop, sess, client, opts...),
		History: orders.NewHistory(client, sess,
			orders.WithLogoutOnForbidden(cfg.LogoutOnForbidden),
			orders.WithHistoryLogger(zl.Named("orders"))),
		DeliveryFee:    cfg.DeliveryFee,
		Logger:         zl,
		SyncRemoteCart: true,
	}, zl)

	if cfg.RunLocal {
		zl.Info("running local server", zap.String("addr", cfg.ListenAddr), zap.String("api", cfg.APIBaseURL))
		if err := r.Run(cfg.ListenAddr); err != nil {
			zl.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
