package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
)

// Processor replays stock decrements that failed after an order was placed.
type Processor struct {
	journal Journal
	stock   StockUpdater
	token   string
	metrics *aws.Metrics
	logger  *zap.Logger
}

func NewProcessor(journal Journal, stock StockUpdater, token string, metrics *aws.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{journal: journal, stock: stock, token: token, metrics: metrics, logger: logger}
}

// Handle processes an SQS batch and reports failed messages individually so
// only those are redelivered.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("reconcile failed", zap.String("message_id", rec.MessageId), zap.Error(err))
			p.count(ctx, aws.MetricReconcileFailed)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
			continue
		}
		p.count(ctx, aws.MetricReconcileProcessed)
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ReconcileMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.IdempotencyKey == "" || msg.ItemID == "" || msg.Quantity < 1 {
		return fmt.Errorf("incomplete reconcile message: %+v", msg)
	}

	log := p.logger.With(
		zap.String("idempotency_key", msg.IdempotencyKey),
		zap.String("order_id", msg.OrderID),
		zap.String("item_id", msg.ItemID),
		zap.String("correlation_id", msg.CorrelationID),
	)

	claimed, err := p.journal.ClaimDecrement(ctx, msg.IdempotencyKey, msg.ItemID)
	if err != nil {
		return fmt.Errorf("claim decrement: %w", err)
	}
	if !claimed {
		log.Info("decrement already reconciled, skipping duplicate")
		return nil
	}

	if err := p.stock.UpdateStock(ctx, p.token, msg.ItemID, msg.Quantity); err != nil {
		if rerr := p.journal.ReleaseDecrement(ctx, msg.IdempotencyKey, msg.ItemID); rerr != nil {
			log.Error("failed to release claim", zap.Error(rerr))
		}
		return fmt.Errorf("update stock: %w", err)
	}
	log.Info("stock decrement reconciled", zap.Int("quantity", msg.Quantity))

	// the stock is applied; a redelivery would find nothing to claim, so this is not retried
	if err := p.journal.CompleteDecrement(ctx, msg.IdempotencyKey, msg.ItemID); err != nil {
		log.Error("failed to record applied decrement, attempt stays open", zap.Error(err))
		return nil
	}

	err = p.journal.MarkDone(ctx, msg.IdempotencyKey)
	switch {
	case errors.Is(err, idempotency.ErrConditionFailed):
		// other items of the same checkout are still pending or in flight
	case err != nil:
		log.Warn("failed to close checkout journal entry", zap.Error(err))
	}
	return nil
}

func (p *Processor) count(ctx context.Context, name string) {
	if err := p.metrics.RecordCount(ctx, name, nil); err != nil {
		p.logger.Warn("failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
