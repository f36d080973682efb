package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/models"
)

// OrderSource lists orders newer than since, newest first.
type OrderSource interface {
	FetchOrders(ctx context.Context, since time.Time) ([]models.Order, error)
}

// StateStore persists the watermark between cycles and restarts.
type StateStore interface {
	Load() (Watermark, bool, error)
	Save(Watermark) error
}

// Poller checks for new orders on a fixed interval.
type Poller struct {
	source     OrderSource
	state      StateStore
	interval   time.Duration
	onNewOrder func(ctx context.Context, order *models.Order)
	logger     *zap.Logger
}

// NewPoller creates a Poller. onNewOrder is called once per new order, oldest first.
func NewPoller(source OrderSource, state StateStore, interval time.Duration, onNewOrder func(ctx context.Context, order *models.Order), logger *zap.Logger) *Poller {
	return &Poller{
		source:     source,
		state:      state,
		interval:   interval,
		onNewOrder: onNewOrder,
		logger:     logger,
	}
}

// Run polls immediately and then on every tick until ctx is done. A failed
// cycle is logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil {
			p.logger.Error("Poll cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("Order watcher is done")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one cycle. Without a saved watermark it only records the newest
// order, so existing orders are not reported on first start.
func (p *Poller) Poll(ctx context.Context) error {
	wm, found, err := p.state.Load()
	if err != nil {
		return err
	}

	orders, err := p.source.FetchOrders(ctx, wm.LastCreatedAt)
	if err != nil {
		return err
	}

	if !found {
		next := Watermark{}
		if len(orders) > 0 {
			next = Watermark{LastOrderID: orders[0].ID, LastCreatedAt: orders[0].CreatedAt}
		}
		p.logger.Info("Recorded initial watermark",
			zap.String("last_order_id", next.LastOrderID),
			zap.Int("existing_orders", len(orders)))
		return p.state.Save(next)
	}

	next := wm
	reported := 0
	for i := len(orders) - 1; i >= 0; i-- {
		order := &orders[i]
		if order.ID == wm.LastOrderID || !order.CreatedAt.After(wm.LastCreatedAt) {
			continue
		}
		p.onNewOrder(ctx, order)
		reported++
		if order.CreatedAt.After(next.LastCreatedAt) {
			next = Watermark{LastOrderID: order.ID, LastCreatedAt: order.CreatedAt}
		}
	}
	if reported == 0 {
		return nil
	}

	p.logger.Info("New orders", zap.Int("count", reported), zap.String("last_order_id", next.LastOrderID))
	return p.state.Save(next)
}
