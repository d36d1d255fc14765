package main

import (
	"context"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

// ReconcileMessage is the SQS body published by checkout for a failed decrement.
type ReconcileMessage = aws.ReconcileMessage

// Journal is the part of the checkout journal the worker drives.
type Journal interface {
	ClaimDecrement(ctx context.Context, key, itemID string) (bool, error)
	CompleteDecrement(ctx context.Context, key, itemID string) error
	ReleaseDecrement(ctx context.Context, key, itemID string) error
	MarkDone(ctx context.Context, key string) error
}

// StockUpdater applies a stock decrement on the inventory API.
type StockUpdater interface {
	UpdateStock(ctx context.Context, token, itemID string, qty int) error
}
