// Package monitor watches leader wallets and turns their pump trades into
// classified events for the replicator.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
	"pump_copy/internal/gateway"
	"pump_copy/internal/model"
	"pump_copy/internal/pump"
)

const (
	signatureFetchLimit = 10
	seenCap             = 1000
	// mintAccountIndex is the position of the mint in a pump trade
	// instruction's account list.
	mintAccountIndex = 2
)

// Trade is one classified leader transaction.
type Trade struct {
	Leader      string
	Signature   solana.Signature
	Side        model.TradeSide
	Mint        solana.PublicKey
	SolAmount   float64 // leader's SOL balance delta, an approximation
	TokenAmount float64
}

// Chain is the slice of the RPC gateway the monitor needs.
type Chain interface {
	RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error)
	TransactionDetail(ctx context.Context, sig solana.Signature) (*gateway.TransactionDetail, error)
}

// Callback receives each classified trade. A callback error is logged and
// does not stop the remaining items of the tick.
type Callback func(ctx context.Context, trade Trade) error

type leaderState struct {
	address solana.PublicKey
	seen    *seenSet
	cancel  context.CancelFunc
	// primed is set once the leader's pre-existing history has been
	// marked seen, so only trades after that point are dispatched.
	primed bool
}

// Monitor polls each tracked leader on its own schedule. Stopping is
// cooperative: a tick in flight finishes before the goroutine exits.
type Monitor struct {
	chain    Chain
	interval time.Duration
	log      *logrus.Entry

	mu       sync.Mutex
	leaders  map[string]*leaderState
	callback Callback
	ctx      context.Context
	wg       sync.WaitGroup
	running  bool
}

func New(chain Chain, interval time.Duration) *Monitor {
	return &Monitor{
		chain:    chain,
		interval: interval,
		log:      common.Log.WithField("component", "monitor"),
		leaders:  make(map[string]*leaderState),
	}
}

// SetCallback registers the consumer for classified trades.
func (m *Monitor) SetCallback(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// AddLeader starts tracking a wallet. When the monitor is already running
// the leader gets its polling goroutine immediately.
func (m *Monitor) AddLeader(address string) error {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("leader address %q: %w", address, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaders[address]; ok {
		return nil
	}
	ls := &leaderState{address: pk, seen: newSeenSet(seenCap)}
	m.leaders[address] = ls
	m.log.WithField("leader", address).Info("tracking leader")
	if m.running {
		m.startLeader(ls, address)
	}
	return nil
}

// RemoveLeader stops tracking a wallet.
func (m *Monitor) RemoveLeader(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.leaders[address]; ok {
		if ls.cancel != nil {
			ls.cancel()
		}
		delete(m.leaders, address)
		m.log.WithField("leader", address).Info("stopped tracking leader")
	}
}

// Start launches one polling goroutine per tracked leader.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.ctx = ctx
	for address, ls := range m.leaders {
		m.startLeader(ls, address)
	}
	m.log.WithField("leaders", len(m.leaders)).Info("monitor started")
}

// Stop cancels every leader goroutine and waits for in-flight ticks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	for _, ls := range m.leaders {
		if ls.cancel != nil {
			ls.cancel()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.log.Info("monitor stopped")
}

// startLeader must run with m.mu held.
func (m *Monitor) startLeader(ls *leaderState, address string) {
	ctx, cancel := context.WithCancel(m.ctx)
	ls.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			if err := m.PollOnce(ctx, address); err != nil && ctx.Err() == nil {
				m.log.WithError(err).WithField("leader", address).Error("poll failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// PollOnce runs a single tick for one leader: fetch recent signatures, mark
// the unseen ones, then classify and dispatch them oldest first.
func (m *Monitor) PollOnce(ctx context.Context, address string) error {
	m.mu.Lock()
	ls, ok := m.leaders[address]
	cb := m.callback
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("leader %s not tracked", address)
	}

	sigs, err := m.chain.RecentSignatures(ctx, ls.address, signatureFetchLimit)
	if err != nil {
		return err
	}

	// The first poll only marks the leader's existing history seen;
	// replaying trades that predate the engine would spend follower
	// funds on stale copies.
	m.mu.Lock()
	if !ls.primed {
		for _, sig := range sigs {
			ls.seen.Add(sig)
		}
		ls.primed = true
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{
			"leader":  address,
			"history": len(sigs),
		}).Info("leader history primed")
		return nil
	}

	// Oldest to newest, so copies replay in chronological order. The
	// signatures are marked seen before any processing, which keeps
	// overlapping polls from classifying one twice.
	var fresh []solana.Signature
	for i := len(sigs) - 1; i >= 0; i-- {
		if ls.seen.Add(sigs[i]) {
			fresh = append(fresh, sigs[i])
		}
	}
	m.mu.Unlock()

	for _, sig := range fresh {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.dispatch(ctx, address, sig, cb)
	}
	return nil
}

// dispatch fetches, classifies, and hands one signature to the callback.
// Every failure is contained to this signature.
func (m *Monitor) dispatch(ctx context.Context, leader string, sig solana.Signature, cb Callback) {
	detail, err := m.chain.TransactionDetail(ctx, sig)
	if err != nil {
		m.log.WithError(err).WithField("signature", sig.String()).Warn("cannot fetch transaction")
		return
	}
	trade, ok := Classify(leader, detail)
	if !ok {
		return
	}
	m.log.WithFields(logrus.Fields{
		"leader":    leader,
		"signature": sig.String(),
		"side":      trade.Side,
		"mint":      trade.Mint.String(),
		"sol":       trade.SolAmount,
	}).Info("leader trade detected")
	if cb == nil {
		return
	}
	if err := cb(ctx, trade); err != nil {
		m.log.WithError(err).WithField("signature", sig.String()).Error("trade callback failed")
	}
}

// Classify inspects a normalized transaction for a pump buy or sell
// addressed to the program and extracts the traded mint and the leader's
// SOL delta.
func Classify(leader string, detail *gateway.TransactionDetail) (Trade, bool) {
	if detail == nil || detail.LedgerErr != "" {
		return Trade{}, false
	}
	for _, ix := range detail.Instructions {
		if !ix.ProgramID.Equals(pump.ProgramID) {
			continue
		}
		params, err := pump.DecodeTrade(ix.Data)
		if err != nil {
			continue
		}
		if len(ix.Accounts) <= mintAccountIndex {
			continue
		}
		return Trade{
			Leader:      leader,
			Signature:   detail.Signature,
			Side:        params.Side,
			Mint:        ix.Accounts[mintAccountIndex],
			SolAmount:   leaderSolDelta(leader, detail),
			TokenAmount: params.TokenAmount(),
		}, true
	}
	return Trade{}, false
}

// leaderSolDelta reads the leader's lamport delta from the balance meta.
// This attributes the whole transaction to the matched instruction, which
// is an accepted approximation.
func leaderSolDelta(leader string, detail *gateway.TransactionDetail) float64 {
	for i, key := range detail.AccountKeys {
		if key.String() != leader {
			continue
		}
		if i >= len(detail.PreBalances) || i >= len(detail.PostBalances) {
			return 0
		}
		pre, post := detail.PreBalances[i], detail.PostBalances[i]
		var delta uint64
		if pre > post {
			delta = pre - post
		} else {
			delta = post - pre
		}
		return float64(delta) / pump.LamportsPerSol
	}
	return 0
}
