// Package executor turns a trade intent into a confirmed on-chain
// transaction: account derivation, slippage bounds, instruction assembly,
// signing, submission, and confirmation polling.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
	"pump_copy/internal/gateway"
	"pump_copy/internal/model"
	"pump_copy/internal/pump"
	"pump_copy/internal/retry"
)

const (
	defaultConfirmAttempts = 15
	defaultConfirmDelay    = 6 * time.Second
	submitBackoff          = 2 * time.Second
)

// Intent is one requested trade. Exactly one of AmountSol (buy),
// AmountTokens or SellPercent (sell) drives the size.
type Intent struct {
	Side         model.TradeSide
	Mint         solana.PublicKey
	AmountSol    float64 // buy: SOL to spend
	AmountTokens float64 // sell: whole tokens to dispose of
	SellPercent  float64 // sell: percentage of the holding, 0 < p <= 100
	Slippage     float64 // percent
	PriorityFee  uint64  // compute unit price, micro-lamports
	Retries      int     // full submit+confirm attempts, min 1
}

// Chain is the slice of the RPC gateway the executor needs.
type Chain interface {
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*gateway.SignatureStatus, error)
}

// Executor builds, signs, submits, and confirms pump trades.
type Executor struct {
	chain Chain
	log   *logrus.Entry

	confirmAttempts int
	confirmDelay    time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

func New(chain Chain) *Executor {
	return &Executor{
		chain:           chain,
		log:             common.Log.WithField("component", "executor"),
		confirmAttempts: defaultConfirmAttempts,
		confirmDelay:    defaultConfirmDelay,
	}
}

// Execute runs the intent with the given signing key and returns the
// confirmed transaction signature.
func (e *Executor) Execute(ctx context.Context, key solana.PrivateKey, in Intent) (solana.Signature, error) {
	if err := in.validate(); err != nil {
		return solana.Signature{}, err
	}
	owner := key.PublicKey()

	curve, err := pump.CurveAddress(in.Mint)
	if err != nil {
		return solana.Signature{}, err
	}
	associatedCurve, err := pump.AssociatedCurveAddress(in.Mint, curve)
	if err != nil {
		return solana.Signature{}, err
	}
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, in.Mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive token account: %w", err)
	}

	if err := e.ensureTokenAccount(ctx, key, in.Mint, tokenAccount, in.PriorityFee); err != nil {
		return solana.Signature{}, fmt.Errorf("ensure token account: %w", err)
	}

	data, err := e.tradeData(ctx, curve, tokenAccount, in)
	if err != nil {
		return solana.Signature{}, err
	}

	instructions := []solana.Instruction{
		solana.NewInstruction(pump.ProgramID, pump.TradeAccounts(in.Mint, curve, associatedCurve, tokenAccount, owner), data),
		computebudget.NewSetComputeUnitPriceInstruction(in.PriorityFee).Build(),
	}

	return e.submitAndConfirm(ctx, key, instructions, in.Retries)
}

func (in Intent) validate() error {
	switch in.Side {
	case model.SideBuy:
		if in.AmountSol <= 0 {
			return fmt.Errorf("buy intent needs a positive SOL amount")
		}
	case model.SideSell:
		if in.AmountTokens <= 0 && (in.SellPercent <= 0 || in.SellPercent > 100) {
			return fmt.Errorf("sell intent needs a token amount or a percentage in (0, 100]")
		}
	default:
		return fmt.Errorf("unknown trade side %q", in.Side)
	}
	if in.Slippage < 0 {
		return fmt.Errorf("negative slippage")
	}
	return nil
}

// tradeData computes the instruction payload: amount and slippage bound from
// a fresh curve snapshot.
func (e *Executor) tradeData(ctx context.Context, curve, tokenAccount solana.PublicKey, in Intent) ([]byte, error) {
	raw, err := e.chain.AccountData(ctx, curve)
	if err != nil {
		return nil, fmt.Errorf("fetch curve %s: %w", curve, err)
	}
	state, err := pump.DecodeCurveState(raw)
	if err != nil {
		return nil, err
	}
	price, err := state.Price()
	if err != nil {
		return nil, err
	}
	priceSol, _ := price.Float64()

	if in.Side == model.SideBuy {
		tokenAmount := in.AmountSol / priceSol
		lamports := in.AmountSol * pump.LamportsPerSol
		maxCost := uint64(lamports * (1 + in.Slippage/100))
		return pump.EncodeBuy(tokenAmount, maxCost), nil
	}

	tokenAmount := in.AmountTokens
	if in.SellPercent > 0 {
		balance, err := e.chain.TokenBalance(ctx, tokenAccount)
		if err != nil {
			return nil, fmt.Errorf("fetch token balance: %w", err)
		}
		tokenAmount = float64(balance) / pump.TokenUnit * in.SellPercent / 100
	}
	if tokenAmount <= 0 {
		return nil, fmt.Errorf("nothing to sell")
	}
	expected := tokenAmount * priceSol * pump.LamportsPerSol
	minOut := expected * (1 - in.Slippage/100)
	if minOut < 0 {
		minOut = 0
	}
	return pump.EncodeSell(tokenAmount, uint64(minOut)), nil
}

// ensureTokenAccount creates the owner's associated token account with its
// own signed transaction when it does not exist yet.
func (e *Executor) ensureTokenAccount(ctx context.Context, key solana.PrivateKey, mint, tokenAccount solana.PublicKey, priorityFee uint64) error {
	_, err := e.chain.AccountData(ctx, tokenAccount)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gateway.ErrAccountNotFound) {
		return err
	}

	e.log.WithField("account", tokenAccount.String()).Info("creating associated token account")
	owner := key.PublicKey()
	createIx := associatedtokenaccount.NewCreateInstruction(owner, owner, mint).Build()
	feeIx := computebudget.NewSetComputeUnitPriceInstruction(priorityFee).Build()
	_, err = e.submitAndConfirm(ctx, key, []solana.Instruction{createIx, feeIx}, 1)
	return err
}

// submitAndConfirm builds a fresh transaction per attempt (new blockhash),
// signs, sends, and waits for confirmation. Ledger rejections are fatal;
// everything else consumes the retry budget.
func (e *Executor) submitAndConfirm(ctx context.Context, key solana.PrivateKey, instructions []solana.Instruction, retries int) (solana.Signature, error) {
	owner := key.PublicKey()
	var sig solana.Signature

	policy := retry.Policy{
		MaxAttempts: retries,
		Backoff:     retry.Fixed(submitBackoff),
		Retryable:   func(err error) bool { return !IsLedgerRejection(err) },
		OnRetry: func(attempt int, err error) {
			e.log.WithError(err).WithField("attempt", attempt+1).Warn("transaction attempt failed, retrying")
		},
		Sleep: e.sleep,
	}

	err := policy.Run(ctx, func(int) error {
		blockhash, err := e.chain.LatestBlockhash(ctx)
		if err != nil {
			return err
		}
		tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
		if err != nil {
			return fmt.Errorf("build transaction: %w", err)
		}
		if _, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
			if pk.Equals(owner) {
				return &key
			}
			return nil
		}); err != nil {
			return fmt.Errorf("sign transaction: %w", err)
		}
		sig, err = e.chain.SendTransaction(ctx, tx)
		if err != nil {
			return err
		}
		e.log.WithField("signature", sig.String()).Info("transaction submitted")
		return e.confirm(ctx, sig)
	})
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// confirm polls signature status a bounded number of times. A missing
// status is retryable, a ledger error is fatal.
func (e *Executor) confirm(ctx context.Context, sig solana.Signature) error {
	for attempt := 0; attempt < e.confirmAttempts; attempt++ {
		statuses, err := e.chain.SignatureStatuses(ctx, sig)
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.LedgerErr != "" {
				return &LedgerRejection{Signature: sig, Cause: st.LedgerErr}
			}
			if st.Confirmed {
				e.log.WithFields(logrus.Fields{
					"signature": sig.String(),
					"status":    st.Status,
				}).Info("transaction confirmed")
				return nil
			}
		} else if err != nil {
			e.log.WithError(err).Debug("status poll failed")
		}
		if attempt < e.confirmAttempts-1 {
			if err := e.wait(ctx, e.confirmDelay); err != nil {
				return err
			}
		}
	}
	return &ConfirmationTimeout{Signature: sig, Attempts: e.confirmAttempts}
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
