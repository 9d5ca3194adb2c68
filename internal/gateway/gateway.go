// Package gateway is the single road to the chain: a rotating pool of RPC
// endpoints behind one shared rate limiter and one retry policy. Every
// component calls the chain through it.
package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"pump_copy/internal/common"
	"pump_copy/internal/retry"
)

const (
	rateLimitAttempts = 5
	transientAttempts = 3
	rateLimitBackoff  = 500 * time.Millisecond
	transientBackoff  = 2 * time.Second
)

// Gateway fans calls out over a pool of endpoints. The limiter is the only
// process-wide shared state; it is injected so tests can pass
// ratelimit.NewUnlimited().
type Gateway struct {
	clients []*rpc.Client
	limiter ratelimit.Limiter
	log     *logrus.Entry

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	next atomic.Uint32
}

// New builds a gateway over the given endpoint URLs.
func New(endpoints []string, limiter ratelimit.Limiter) *Gateway {
	clients := make([]*rpc.Client, 0, len(endpoints))
	for _, ep := range endpoints {
		clients = append(clients, rpc.New(ep))
	}
	return &Gateway{
		clients: clients,
		limiter: limiter,
		log:     common.Log.WithField("component", "gateway"),
	}
}

func (g *Gateway) current() *rpc.Client {
	return g.clients[int(g.next.Load())%len(g.clients)]
}

func (g *Gateway) rotate() {
	g.next.Add(1)
}

// do runs fn against the current endpoint under the shared limiter,
// retrying per the gateway policy: rate limits back off exponentially and
// rotate the endpoint, other failures get a short fixed-delay budget.
func (g *Gateway) do(ctx context.Context, op string, fn func(ctx context.Context, c *rpc.Client) error) error {
	var rateLimited, transient int

	policy := retry.Policy{
		MaxAttempts: rateLimitAttempts,
		Backoff: func(_ int, err error) time.Duration {
			if IsRateLimited(err) {
				return rateLimitBackoff << uint(rateLimited-1)
			}
			return transientBackoff
		},
		Retryable: func(err error) bool {
			if errors.Is(err, ErrAccountNotFound) {
				return false
			}
			if IsRateLimited(err) {
				rateLimited++
				return rateLimited < rateLimitAttempts
			}
			transient++
			return transient < transientAttempts
		},
		OnRetry: func(attempt int, err error) {
			if IsRateLimited(err) {
				g.rotate()
				g.log.WithError(err).WithFields(logrus.Fields{
					"op":      op,
					"attempt": attempt + 1,
				}).Warn("rate limited, rotating endpoint")
			} else {
				g.log.WithError(err).WithFields(logrus.Fields{
					"op":      op,
					"attempt": attempt + 1,
				}).Warn("transient rpc failure, retrying")
			}
		},
		Sleep: g.sleep,
	}

	err := policy.Run(ctx, func(int) error {
		g.limiter.Take()
		return fn(ctx, g.current())
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if IsRateLimited(err) {
		return &RateLimitError{Op: op, Attempts: rateLimited, Err: err}
	}
	if ctx.Err() != nil {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// RecentSignatures returns the newest signatures of address, newest first,
// as the ledger reports them.
func (g *Gateway) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	var sigs []solana.Signature
	err := g.do(ctx, "getSignaturesForAddress", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		sigs = sigs[:0]
		for _, info := range out {
			sigs = append(sigs, info.Signature)
		}
		return nil
	})
	return sigs, err
}

// TransactionDetail fetches and normalizes one transaction.
func (g *Gateway) TransactionDetail(ctx context.Context, sig solana.Signature) (*TransactionDetail, error) {
	maxVersion := uint64(0)
	var detail *TransactionDetail
	err := g.do(ctx, "getTransaction", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return err
		}
		detail, err = normalizeTransaction(sig, out)
		return err
	})
	return detail, err
}

// AccountData returns the raw account payload, or ErrAccountNotFound.
func (g *Gateway) AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var data []byte
	err := g.do(ctx, "getAccountInfo", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetAccountInfo(ctx, address)
		if err != nil {
			if err == rpc.ErrNotFound {
				return ErrAccountNotFound
			}
			return err
		}
		if out == nil || out.Value == nil {
			return ErrAccountNotFound
		}
		data = out.Value.Data.GetBinary()
		return nil
	})
	return data, err
}

// Balance returns the lamport balance of address.
func (g *Gateway) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := g.do(ctx, "getBalance", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetBalance(ctx, address, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	return lamports, err
}

// TokenBalance returns the raw token amount held by a token account.
func (g *Gateway) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var amount uint64
	err := g.do(ctx, "getTokenAccountBalance", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		amount, err = parseRawAmount(out)
		return err
	})
	return amount, err
}

// LatestBlockhash returns a recent blockhash for transaction assembly.
func (g *Gateway) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := g.do(ctx, "getLatestBlockhash", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		hash = out.Value.Blockhash
		return nil
	})
	return hash, err
}

// SendTransaction submits a signed transaction.
func (g *Gateway) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := g.do(ctx, "sendTransaction", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		sig = out
		return nil
	})
	return sig, err
}

// SignatureStatuses returns one status per signature; a nil element means
// the ledger does not know the signature yet.
func (g *Gateway) SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*SignatureStatus, error) {
	var statuses []*SignatureStatus
	err := g.do(ctx, "getSignatureStatuses", func(ctx context.Context, c *rpc.Client) error {
		out, err := c.GetSignatureStatuses(ctx, true, sigs...)
		if err != nil {
			return err
		}
		statuses = normalizeStatuses(out)
		return nil
	})
	return statuses, err
}
