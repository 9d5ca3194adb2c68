// Package replicator applies each follower's policy to a classified leader
// trade and drives the executor on their behalf. One follower's failure
// never aborts another's processing.
package replicator

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
	"pump_copy/internal/executor"
	"pump_copy/internal/model"
	"pump_copy/internal/monitor"
	"pump_copy/internal/notify"
)

// Store is the slice of persistence the replicator needs.
type Store interface {
	ActivePoliciesForLeader(ctx context.Context, leader string) ([]model.FollowerPolicy, error)
	IsTokenExcluded(ctx context.Context, userID int64, token string) (bool, error)
	CreateReplication(ctx context.Context, r *model.ReplicationRecord) error
	UpdateReplication(ctx context.Context, r *model.ReplicationRecord) error
	TotalCopied(ctx context.Context, policyID int64) (float64, error)
	SuccessCopies(ctx context.Context, policyID int64, token string) (int64, error)
}

// TradeExecutor runs one trade intent to a confirmed signature.
type TradeExecutor interface {
	Execute(ctx context.Context, key solana.PrivateKey, in executor.Intent) (solana.Signature, error)
}

// Keyring resolves a user's signing key.
type Keyring interface {
	Resolve(ctx context.Context, userID int64) (solana.PrivateKey, error)
}

// BalanceSource reads a wallet's lamport balance for the preflight check.
type BalanceSource interface {
	Balance(ctx context.Context, address solana.PublicKey) (uint64, error)
}

// Replicator fans one leader trade out to that leader's followers,
// sequentially within the tick.
type Replicator struct {
	store    Store
	exec     TradeExecutor
	keys     Keyring
	balances BalanceSource
	notifier notify.Notifier
	log      *logrus.Entry
}

func New(store Store, exec TradeExecutor, keys Keyring, balances BalanceSource, notifier notify.Notifier) *Replicator {
	return &Replicator{
		store:    store,
		exec:     exec,
		keys:     keys,
		balances: balances,
		notifier: notifier,
		log:      common.Log.WithField("component", "replicator"),
	}
}

// HandleTrade is the monitor callback: replicate the trade for every active
// policy bound to its leader.
func (r *Replicator) HandleTrade(ctx context.Context, trade monitor.Trade) error {
	policies, err := r.store.ActivePoliciesForLeader(ctx, trade.Leader)
	if err != nil {
		return fmt.Errorf("load policies for %s: %w", trade.Leader, err)
	}
	for i := range policies {
		r.replicate(ctx, &policies[i], trade)
	}
	return nil
}

// replicate runs one follower's attempt end to end. Every failure is
// terminal for this attempt only.
func (r *Replicator) replicate(ctx context.Context, policy *model.FollowerPolicy, trade monitor.Trade) {
	token := trade.Mint.String()
	log := r.log.WithFields(logrus.Fields{
		"policy":    policy.ID,
		"user":      policy.UserID,
		"signature": trade.Signature.String(),
		"token":     token,
		"side":      trade.Side,
	})

	// Policy-level skips happen before any record exists.
	excluded, err := r.store.IsTokenExcluded(ctx, policy.UserID, token)
	if err != nil {
		log.WithError(err).Error("exclusion lookup failed")
		return
	}
	if excluded {
		log.Info("token excluded, skipping")
		r.notifier.Notify(policy.UserID, fmt.Sprintf("Copy trade skipped: token %s is on your exclusion list.", token))
		return
	}
	if trade.Side == model.SideSell && !policy.CopySells {
		log.Info("sell copying disabled, skipping")
		r.notifier.Notify(policy.UserID, fmt.Sprintf("Copy trade skipped: sell copying is disabled for %s.", policy.LeaderAddress))
		return
	}

	record := &model.ReplicationRecord{
		PolicyID:          policy.ID,
		OriginalSignature: trade.Signature.String(),
		TokenAddress:      token,
		Side:              trade.Side,
		Status:            model.ReplicationPending,
	}
	if err := r.store.CreateReplication(ctx, record); err != nil {
		log.WithError(err).Error("cannot create replication record")
		return
	}

	key, err := r.keys.Resolve(ctx, policy.UserID)
	if err != nil {
		r.finish(ctx, policy, record, model.ReplicationFailed, err.Error(),
			fmt.Sprintf("❌ Copy trade failed: %v", err))
		return
	}

	amount := trade.SolAmount * policy.CopyPercentage / 100

	if policy.MinAmount > 0 && amount < policy.MinAmount {
		r.finish(ctx, policy, record, model.ReplicationSkipped, "amount below minimum",
			fmt.Sprintf("Copy trade skipped: %.4f SOL is below your %.4f SOL minimum.", amount, policy.MinAmount))
		return
	}
	if policy.MaxAmount != nil && amount > *policy.MaxAmount {
		log.WithField("clamped_to", *policy.MaxAmount).Info("amount clamped to maximum")
		amount = *policy.MaxAmount
	}
	if policy.TotalAmount != nil {
		spent, err := r.store.TotalCopied(ctx, policy.ID)
		if err != nil {
			r.finish(ctx, policy, record, model.ReplicationFailed, err.Error(),
				"❌ Copy trade failed: internal error.")
			return
		}
		if spent+amount > *policy.TotalAmount {
			r.finish(ctx, policy, record, model.ReplicationSkipped, "total amount limit reached",
				fmt.Sprintf("Copy trade skipped: total amount limit of %.4f SOL reached.", *policy.TotalAmount))
			return
		}
	}
	if policy.MaxCopiesPerToken != nil {
		copies, err := r.store.SuccessCopies(ctx, policy.ID, token)
		if err != nil {
			r.finish(ctx, policy, record, model.ReplicationFailed, err.Error(),
				"❌ Copy trade failed: internal error.")
			return
		}
		if copies >= *policy.MaxCopiesPerToken {
			r.finish(ctx, policy, record, model.ReplicationSkipped, "max copies per token reached",
				fmt.Sprintf("Copy trade skipped: you already copied %s %d times.", token, copies))
			return
		}
	}

	if trade.Side == model.SideBuy {
		balance, err := r.balances.Balance(ctx, key.PublicKey())
		if err != nil {
			r.finish(ctx, policy, record, model.ReplicationFailed, err.Error(),
				"❌ Copy trade failed: balance check failed.")
			return
		}
		if float64(balance)/1e9 < amount {
			r.finish(ctx, policy, record, model.ReplicationFailed, "insufficient balance",
				fmt.Sprintf("❌ Copy trade failed: insufficient balance for %.4f SOL.", amount))
			return
		}
	}

	intent := r.buildIntent(policy, trade, amount)

	start := time.Now()
	sig, err := r.exec.Execute(ctx, key, intent)
	if err != nil {
		r.finish(ctx, policy, record, model.ReplicationFailed, err.Error(),
			fmt.Sprintf("❌ Copy trade failed for %s: %v", token, err))
		return
	}

	record.CopiedSignature = sig.String()
	record.AmountSol = amount
	elapsed := time.Since(start)
	r.finish(ctx, policy, record, model.ReplicationSuccess, "",
		fmt.Sprintf("✅ Copied %s of %s: %.4f SOL in %s.\nhttps://solscan.io/tx/%s",
			trade.Side, token, amount, elapsed.Round(time.Millisecond), sig))
	log.WithFields(logrus.Fields{
		"copied_signature": sig.String(),
		"amount_sol":       amount,
		"elapsed":          elapsed.String(),
	}).Info("replication succeeded")
}

// buildIntent maps the trade and the follower's own gas, slippage, and
// retry settings into an executor intent. Sells dispose of the follower's
// proportional holding rather than the leader's token amount.
func (r *Replicator) buildIntent(policy *model.FollowerPolicy, trade monitor.Trade, amount float64) executor.Intent {
	if trade.Side == model.SideBuy {
		return executor.Intent{
			Side:        model.SideBuy,
			Mint:        trade.Mint,
			AmountSol:   amount,
			Slippage:    policy.BuySlippage,
			PriorityFee: policy.BuyGasFee,
			Retries:     policy.RetryCount,
		}
	}
	return executor.Intent{
		Side:        model.SideSell,
		Mint:        trade.Mint,
		SellPercent: policy.CopyPercentage,
		Slippage:    policy.SellSlippage,
		PriorityFee: policy.SellGasFee,
		Retries:     policy.RetryCount,
	}
}

// finish moves the record into its terminal state and sends the one
// notification this attempt produces.
func (r *Replicator) finish(ctx context.Context, policy *model.FollowerPolicy, record *model.ReplicationRecord, status model.ReplicationStatus, errText, message string) {
	record.Status = status
	record.Error = errText
	if err := r.store.UpdateReplication(ctx, record); err != nil {
		r.log.WithError(err).WithField("record", record.ID).Error("cannot update replication record")
	}
	r.notifier.Notify(policy.UserID, message)
}
