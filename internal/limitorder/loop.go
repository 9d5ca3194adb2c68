// Package limitorder polls active limit orders against the current
// bonding-curve price and fires the ones whose trigger condition holds.
package limitorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
	"pump_copy/internal/executor"
	"pump_copy/internal/model"
	"pump_copy/internal/notify"
)

// Store is the slice of persistence the loop needs.
type Store interface {
	ActiveLimitOrders(ctx context.Context) ([]model.LimitOrder, error)
	UpdateLimitOrder(ctx context.Context, o *model.LimitOrder) error
}

// PriceSource reads the current spot price in SOL per token.
type PriceSource interface {
	CurrentPrice(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error)
}

// TradeExecutor runs one trade intent to a confirmed signature.
type TradeExecutor interface {
	Execute(ctx context.Context, key solana.PrivateKey, in executor.Intent) (solana.Signature, error)
}

// Keyring resolves a user's signing key.
type Keyring interface {
	Resolve(ctx context.Context, userID int64) (solana.PrivateKey, error)
}

// Loop evaluates every active order once per interval. A price lookup
// failure leaves the order active for the next tick; an execution failure
// is terminal.
type Loop struct {
	store       Store
	prices      PriceSource
	exec        TradeExecutor
	keys        Keyring
	notifier    notify.Notifier
	interval    time.Duration
	priorityFee uint64
	log         *logrus.Entry
}

// New builds the loop. priorityFee is the compute-unit price applied to
// order executions; orders carry no gas settings of their own.
func New(store Store, prices PriceSource, exec TradeExecutor, keys Keyring, notifier notify.Notifier, interval time.Duration, priorityFee uint64) *Loop {
	return &Loop{
		store:       store,
		prices:      prices,
		exec:        exec,
		keys:        keys,
		notifier:    notifier,
		interval:    interval,
		priorityFee: priorityFee,
		log:         common.Log.WithField("component", "limitorder"),
	}
}

// ResolveTrigger turns a percent-based trigger into the absolute price an
// order is stored with: +percent above the reference for sells, -percent
// below it for buys. A zero percent keeps the order's explicit price.
func ResolveTrigger(order *model.LimitOrder, referencePrice decimal.Decimal) {
	if order.TriggerPercent == 0 {
		return
	}
	factor := decimal.NewFromFloat(1 + order.TriggerPercent/100)
	if order.OrderType == model.SideBuy {
		factor = decimal.NewFromFloat(1 - order.TriggerPercent/100)
	}
	order.TriggerPrice, _ = referencePrice.Mul(factor).Float64()
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.log.WithField("interval", l.interval.String()).Info("limit order loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info("limit order loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick evaluates every active order once. Orders are isolated from each
// other: one order's failure never skips the rest.
func (l *Loop) Tick(ctx context.Context) {
	orders, err := l.store.ActiveLimitOrders(ctx)
	if err != nil {
		l.log.WithError(err).Error("cannot load active orders")
		return
	}
	for i := range orders {
		l.evaluate(ctx, &orders[i])
	}
}

func (l *Loop) evaluate(ctx context.Context, order *model.LimitOrder) {
	log := l.log.WithFields(logrus.Fields{
		"order": order.ID,
		"user":  order.UserID,
		"token": order.TokenAddress,
		"type":  order.OrderType,
	})

	mint, err := solana.PublicKeyFromBase58(order.TokenAddress)
	if err != nil {
		l.fail(ctx, order, fmt.Sprintf("invalid token address: %v", err))
		return
	}

	price, err := l.prices.CurrentPrice(ctx, mint)
	if err != nil {
		// Transient: the order stays active and is retried next tick.
		log.WithError(err).Warn("price lookup failed")
		return
	}

	if !triggered(order, price) {
		return
	}
	log.WithFields(logrus.Fields{
		"price":   price.String(),
		"trigger": order.TriggerPrice,
	}).Info("trigger condition met")

	key, err := l.keys.Resolve(ctx, order.UserID)
	if err != nil {
		l.fail(ctx, order, err.Error())
		return
	}

	sig, err := l.exec.Execute(ctx, key, l.buildIntent(order, mint))
	if err != nil {
		// An unconfirmed submission may still land; keep the signature
		// on the record for manual follow-up.
		var timeout *executor.ConfirmationTimeout
		if errors.As(err, &timeout) {
			order.TxHash = timeout.Signature.String()
		}
		l.fail(ctx, order, err.Error())
		return
	}

	now := time.Now()
	order.Status = model.OrderExecuted
	order.TxHash = sig.String()
	order.ExecutedAt = &now
	if err := l.store.UpdateLimitOrder(ctx, order); err != nil {
		log.WithError(err).Error("cannot mark order executed")
		return
	}
	l.notifier.Notify(order.UserID, fmt.Sprintf("✅ Limit %s order #%d for %s executed at %s SOL.\nhttps://solscan.io/tx/%s",
		order.OrderType, order.ID, order.TokenAddress, price.String(), sig))
	log.WithField("signature", sig.String()).Info("limit order executed")
}

// triggered reports whether price satisfies the order's condition: a buy
// fires at or below the trigger, a sell at or above it.
func triggered(order *model.LimitOrder, price decimal.Decimal) bool {
	trigger := decimal.NewFromFloat(order.TriggerPrice)
	if order.OrderType == model.SideBuy {
		return price.LessThanOrEqual(trigger)
	}
	return price.GreaterThanOrEqual(trigger)
}

func (l *Loop) buildIntent(order *model.LimitOrder, mint solana.PublicKey) executor.Intent {
	if order.OrderType == model.SideBuy {
		return executor.Intent{
			Side:        model.SideBuy,
			Mint:        mint,
			AmountSol:   order.AmountSol,
			Slippage:    order.Slippage,
			PriorityFee: l.priorityFee,
		}
	}
	return executor.Intent{
		Side:         model.SideSell,
		Mint:         mint,
		AmountTokens: order.AmountTokens,
		Slippage:     order.Slippage,
		PriorityFee:  l.priorityFee,
	}
}

func (l *Loop) fail(ctx context.Context, order *model.LimitOrder, reason string) {
	order.Status = model.OrderError
	if err := l.store.UpdateLimitOrder(ctx, order); err != nil {
		l.log.WithError(err).WithField("order", order.ID).Error("cannot mark order errored")
	}
	l.notifier.Notify(order.UserID, fmt.Sprintf("❌ Limit %s order #%d for %s failed: %s",
		order.OrderType, order.ID, order.TokenAddress, reason))
	l.log.WithFields(logrus.Fields{"order": order.ID, "reason": reason}).Warn("limit order failed")
}
