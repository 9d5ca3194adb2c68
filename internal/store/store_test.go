package store

import (
	"context"
	"testing"
	"time"

	"pump_copy/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWalletRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := &model.Wallet{UserID: 7, Address: "addr", PrivateKey: "key-v1"}
	if err := s.UpsertWallet(ctx, w); err != nil {
		t.Fatalf("UpsertWallet: %v", err)
	}
	key, err := s.WalletKey(ctx, 7)
	if err != nil {
		t.Fatalf("WalletKey: %v", err)
	}
	if key != "key-v1" {
		t.Errorf("key = %q, want key-v1", key)
	}

	w.PrivateKey = "key-v2"
	if err := s.UpsertWallet(ctx, w); err != nil {
		t.Fatalf("second UpsertWallet: %v", err)
	}
	if key, _ = s.WalletKey(ctx, 7); key != "key-v2" {
		t.Errorf("key after upsert = %q, want key-v2", key)
	}

	if _, err := s.WalletKey(ctx, 99); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestPolicyLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	maxAmount := 2.5
	maxCopies := int64(3)
	p := &model.FollowerPolicy{
		UserID:            1,
		Name:              "whale one",
		LeaderAddress:     "LeaderA",
		Active:            true,
		CopyPercentage:    50,
		MinAmount:         0.1,
		MaxAmount:         &maxAmount,
		MaxCopiesPerToken: &maxCopies,
		CopySells:         true,
		RetryCount:        2,
		BuyGasFee:         200_000,
		SellGasFee:        150_000,
		BuySlippage:       10,
		SellSlippage:      3,
	}
	if err := s.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("CreatePolicy did not set the id")
	}

	other := &model.FollowerPolicy{UserID: 2, LeaderAddress: "LeaderB", Active: true, CopyPercentage: 100, CopySells: true, RetryCount: 1}
	if err := s.CreatePolicy(ctx, other); err != nil {
		t.Fatalf("CreatePolicy other: %v", err)
	}

	forLeader, err := s.ActivePoliciesForLeader(ctx, "LeaderA")
	if err != nil {
		t.Fatalf("ActivePoliciesForLeader: %v", err)
	}
	if len(forLeader) != 1 {
		t.Fatalf("policies for LeaderA = %d, want 1", len(forLeader))
	}
	got := forLeader[0]
	if got.MaxAmount == nil || *got.MaxAmount != maxAmount {
		t.Errorf("max amount = %v, want %v", got.MaxAmount, maxAmount)
	}
	if got.TotalAmount != nil {
		t.Errorf("total amount = %v, want nil", *got.TotalAmount)
	}
	if got.MaxCopiesPerToken == nil || *got.MaxCopiesPerToken != maxCopies {
		t.Errorf("max copies = %v, want %v", got.MaxCopiesPerToken, maxCopies)
	}
	if got.BuyGasFee != 200_000 || got.SellSlippage != 3 {
		t.Errorf("gas/slippage round trip mismatch: %+v", got)
	}

	if err := s.SetPolicyActive(ctx, p.ID, false); err != nil {
		t.Fatalf("SetPolicyActive: %v", err)
	}
	all, err := s.ActivePolicies(ctx)
	if err != nil {
		t.Fatalf("ActivePolicies: %v", err)
	}
	if len(all) != 1 || all[0].ID != other.ID {
		t.Errorf("active policies after deactivation = %+v", all)
	}
}

func TestExcludedTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddExcludedToken(ctx, 1, "MintX"); err != nil {
		t.Fatalf("AddExcludedToken: %v", err)
	}
	// Duplicate inserts are ignored.
	if err := s.AddExcludedToken(ctx, 1, "MintX"); err != nil {
		t.Fatalf("duplicate AddExcludedToken: %v", err)
	}

	cases := []struct {
		userID int64
		token  string
		want   bool
	}{
		{1, "MintX", true},
		{1, "MintY", false},
		{2, "MintX", false},
	}
	for _, tc := range cases {
		got, err := s.IsTokenExcluded(ctx, tc.userID, tc.token)
		if err != nil {
			t.Fatalf("IsTokenExcluded(%d, %s): %v", tc.userID, tc.token, err)
		}
		if got != tc.want {
			t.Errorf("IsTokenExcluded(%d, %s) = %v, want %v", tc.userID, tc.token, got, tc.want)
		}
	}
}

func TestReplicationAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &model.FollowerPolicy{UserID: 1, LeaderAddress: "L", Active: true, CopyPercentage: 100, CopySells: true, RetryCount: 1}
	if err := s.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}

	add := func(token string, status model.ReplicationStatus, amount float64) {
		t.Helper()
		r := &model.ReplicationRecord{
			PolicyID:          p.ID,
			OriginalSignature: "sig-" + token,
			TokenAddress:      token,
			Side:              model.SideBuy,
			Status:            model.ReplicationPending,
		}
		if err := s.CreateReplication(ctx, r); err != nil {
			t.Fatalf("CreateReplication: %v", err)
		}
		r.Status = status
		r.AmountSol = amount
		if err := s.UpdateReplication(ctx, r); err != nil {
			t.Fatalf("UpdateReplication: %v", err)
		}
	}

	add("MintA", model.ReplicationSuccess, 1.0)
	add("MintA", model.ReplicationSuccess, 0.5)
	add("MintA", model.ReplicationFailed, 0)
	add("MintB", model.ReplicationSkipped, 0)

	total, err := s.TotalCopied(ctx, p.ID)
	if err != nil {
		t.Fatalf("TotalCopied: %v", err)
	}
	if total != 1.5 {
		t.Errorf("total copied = %v, want 1.5: only SUCCESS amounts count", total)
	}

	copies, err := s.SuccessCopies(ctx, p.ID, "MintA")
	if err != nil {
		t.Fatalf("SuccessCopies: %v", err)
	}
	if copies != 2 {
		t.Errorf("success copies of MintA = %d, want 2", copies)
	}

	records, err := s.RecordsForPolicy(ctx, p.ID)
	if err != nil {
		t.Fatalf("RecordsForPolicy: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("records = %d, want 4", len(records))
	}
}

func TestTotalCopiedEmptyPolicy(t *testing.T) {
	s := openTestStore(t)
	total, err := s.TotalCopied(context.Background(), 42)
	if err != nil {
		t.Fatalf("TotalCopied: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %v, want 0", total)
	}
}

func TestLimitOrderLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := &model.LimitOrder{
		UserID:       1,
		TokenAddress: "MintA",
		OrderType:    model.SideBuy,
		AmountSol:    0.5,
		TriggerPrice: 0.0005,
		Slippage:     2,
	}
	if err := s.CreateLimitOrder(ctx, o); err != nil {
		t.Fatalf("CreateLimitOrder: %v", err)
	}
	if o.Status != model.OrderActive {
		t.Errorf("status = %s, want active", o.Status)
	}

	active, err := s.ActiveLimitOrders(ctx)
	if err != nil {
		t.Fatalf("ActiveLimitOrders: %v", err)
	}
	if len(active) != 1 || active[0].ID != o.ID {
		t.Fatalf("active orders = %+v", active)
	}

	now := time.Now()
	o.Status = model.OrderExecuted
	o.TxHash = "sig123"
	o.ExecutedAt = &now
	if err := s.UpdateLimitOrder(ctx, o); err != nil {
		t.Fatalf("UpdateLimitOrder: %v", err)
	}

	active, _ = s.ActiveLimitOrders(ctx)
	if len(active) != 0 {
		t.Errorf("active orders after execution = %d, want 0", len(active))
	}

	// Terminal states are final: a second transition is refused.
	o.Status = model.OrderCancelled
	if err := s.UpdateLimitOrder(ctx, o); err == nil {
		t.Error("expected error when updating an executed order")
	}
}
