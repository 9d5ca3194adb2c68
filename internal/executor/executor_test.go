package executor

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"pump_copy/internal/gateway"
	"pump_copy/internal/model"
	"pump_copy/internal/pump"
)

// curveAccount encodes a bonding-curve account with the production
// discriminator, pricing at solReserves/tokenReserves.
func curveAccount(tokenReserves, solReserves uint64) []byte {
	data := make([]byte, 8+8*5+1)
	binary.LittleEndian.PutUint64(data[0:8], 6966180631402821399)
	binary.LittleEndian.PutUint64(data[8:16], tokenReserves)
	binary.LittleEndian.PutUint64(data[16:24], solReserves)
	return data
}

type fakeChain struct {
	accounts     map[solana.PublicKey][]byte
	tokenBalance uint64
	statuses     []*gateway.SignatureStatus
	statusErr    error
	sendErr      error

	sent []*solana.Transaction
}

func (f *fakeChain) AccountData(_ context.Context, address solana.PublicKey) ([]byte, error) {
	data, ok := f.accounts[address]
	if !ok {
		return nil, gateway.ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeChain) TokenBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.tokenBalance, nil
}

func (f *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1}, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	var sig solana.Signature
	sig[0] = byte(len(f.sent))
	return sig, nil
}

func (f *fakeChain) SignatureStatuses(context.Context, ...solana.Signature) ([]*gateway.SignatureStatus, error) {
	return f.statuses, f.statusErr
}

func confirmed() []*gateway.SignatureStatus {
	return []*gateway.SignatureStatus{{Confirmed: true, Status: "confirmed"}}
}

// newTestExecutor wires a fake chain with an existing token account and a
// curve priced at exactly 1/1024 SOL per token.
func newTestExecutor(t *testing.T, key solana.PrivateKey, mint solana.PublicKey) (*Executor, *fakeChain) {
	t.Helper()
	curve, err := pump.CurveAddress(mint)
	if err != nil {
		t.Fatalf("CurveAddress: %v", err)
	}
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(key.PublicKey(), mint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress: %v", err)
	}
	chain := &fakeChain{
		accounts: map[solana.PublicKey][]byte{
			curve:        curveAccount(1024*pump.TokenUnit, 1*pump.LamportsPerSol),
			tokenAccount: {1},
		},
		statuses: confirmed(),
	}
	e := New(chain)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e, chain
}

// tradeDataOf digs the pump instruction payload out of a submitted
// transaction.
func tradeDataOf(t *testing.T, tx *solana.Transaction) *pump.TradeParams {
	t.Helper()
	for _, ix := range tx.Message.Instructions {
		params, err := pump.DecodeTrade([]byte(ix.Data))
		if err == nil {
			return params
		}
	}
	t.Fatal("no trade instruction in submitted transaction")
	return nil
}

func TestExecuteBuy(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)

	sig, err := e.Execute(context.Background(), key, Intent{
		Side:      model.SideBuy,
		Mint:      mint,
		AmountSol: 1,
		Slippage:  50,
		Retries:   1,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if sig.IsZero() {
		t.Error("Execute returned zero signature")
	}
	if len(chain.sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(chain.sent))
	}

	params := tradeDataOf(t, chain.sent[0])
	if params.Side != model.SideBuy {
		t.Errorf("side = %s, want BUY", params.Side)
	}
	// 1 SOL at 1/1024 SOL per token buys 1024 tokens.
	if got := params.TokenAmount(); got != 1024 {
		t.Errorf("token amount = %v, want 1024", got)
	}
	// 50% slippage on a 1 SOL spend caps the cost at 1.5 SOL.
	if params.Bound != 1_500_000_000 {
		t.Errorf("max cost = %d lamports, want 1500000000", params.Bound)
	}
}

func TestExecuteSellByPercentage(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)
	chain.tokenBalance = 1000 * pump.TokenUnit

	_, err := e.Execute(context.Background(), key, Intent{
		Side:        model.SideSell,
		Mint:        mint,
		SellPercent: 25,
		Retries:     1,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	params := tradeDataOf(t, chain.sent[0])
	if params.Side != model.SideSell {
		t.Errorf("side = %s, want SELL", params.Side)
	}
	// 25% of a 1000 token holding.
	if got := params.TokenAmount(); got != 250 {
		t.Errorf("token amount = %v, want 250", got)
	}
	// 250 tokens at 1/1024 SOL per token, zero slippage tolerance.
	wantMin := uint64(250.0 / 1024.0 * pump.LamportsPerSol)
	if params.Bound != wantMin {
		t.Errorf("min output = %d lamports, want %d", params.Bound, wantMin)
	}
}

func TestExecuteCreatesMissingTokenAccount(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)

	tokenAccount, _, _ := solana.FindAssociatedTokenAddress(key.PublicKey(), mint)
	delete(chain.accounts, tokenAccount)

	_, err := e.Execute(context.Background(), key, Intent{
		Side:      model.SideBuy,
		Mint:      mint,
		AmountSol: 0.5,
		Retries:   1,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// One transaction creates the associated token account, one trades.
	if len(chain.sent) != 2 {
		t.Fatalf("sent %d transactions, want 2", len(chain.sent))
	}
}

func TestExecuteStopsOnLedgerRejection(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)
	chain.statuses = []*gateway.SignatureStatus{{LedgerErr: "InstructionError: slippage exceeded"}}

	_, err := e.Execute(context.Background(), key, Intent{
		Side:      model.SideBuy,
		Mint:      mint,
		AmountSol: 1,
		Retries:   3,
	})
	if !IsLedgerRejection(err) {
		t.Fatalf("error = %v, want ledger rejection", err)
	}
	// A rejection is deterministic: the retry budget must not be spent.
	if len(chain.sent) != 1 {
		t.Errorf("sent %d transactions, want 1", len(chain.sent))
	}
}

func TestExecuteTimesOutWithoutConfirmation(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)
	chain.statuses = []*gateway.SignatureStatus{nil}
	e.confirmAttempts = 2

	_, err := e.Execute(context.Background(), key, Intent{
		Side:      model.SideBuy,
		Mint:      mint,
		AmountSol: 1,
		Retries:   1,
	})
	var timeout *ConfirmationTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want *ConfirmationTimeout", err)
	}
	if timeout.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", timeout.Attempts)
	}
}

func TestExecuteRetriesTransientSendFailures(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PublicKey()
	e, chain := newTestExecutor(t, key, mint)

	chain.sendErr = errors.New("blockhash not found")

	// Clear the failure once two attempts have burned on it.
	sleeps := 0
	e.sleep = func(context.Context, time.Duration) error {
		sleeps++
		if sleeps >= 2 {
			chain.sendErr = nil
		}
		return nil
	}

	_, err := e.Execute(context.Background(), key, Intent{
		Side:      model.SideBuy,
		Mint:      mint,
		AmountSol: 1,
		Retries:   3,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(chain.sent) != 1 {
		t.Errorf("sent %d transactions, want 1", len(chain.sent))
	}
}

func TestIntentValidation(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	cases := []struct {
		name   string
		intent Intent
	}{
		{"buy without amount", Intent{Side: model.SideBuy, Mint: mint}},
		{"sell without size", Intent{Side: model.SideSell, Mint: mint}},
		{"sell percent over 100", Intent{Side: model.SideSell, Mint: mint, SellPercent: 150}},
		{"unknown side", Intent{Side: "HOLD", Mint: mint, AmountSol: 1}},
		{"negative slippage", Intent{Side: model.SideBuy, Mint: mint, AmountSol: 1, Slippage: -1}},
	}
	key := solana.NewWallet().PrivateKey
	e := New(&fakeChain{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Execute(context.Background(), key, tc.intent); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
