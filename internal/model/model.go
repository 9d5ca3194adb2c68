package model

import "time"

// TradeSide tags a leader transaction or replication as a buy or a sell.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// ReplicationStatus is the lifecycle of a single replication attempt.
// PENDING is the only non-terminal state.
type ReplicationStatus string

const (
	ReplicationPending ReplicationStatus = "PENDING"
	ReplicationSuccess ReplicationStatus = "SUCCESS"
	ReplicationFailed  ReplicationStatus = "FAILED"
	ReplicationSkipped ReplicationStatus = "SKIPPED"
)

// OrderStatus is the lifecycle of a limit order. Everything after active is
// terminal.
type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderExecuted  OrderStatus = "executed"
	OrderCancelled OrderStatus = "cancelled"
	OrderError     OrderStatus = "error"
)

// FollowerPolicy is one user's configuration for replicating a leader's
// trades. Nil caps mean unlimited.
type FollowerPolicy struct {
	ID            int64
	UserID        int64
	Name          string
	LeaderAddress string
	Active        bool

	CopyPercentage    float64
	MinAmount         float64 // SOL, 0 = no minimum
	MaxAmount         *float64
	TotalAmount       *float64
	MaxCopiesPerToken *int64
	CopySells         bool
	RetryCount        int

	BuyGasFee    uint64 // compute unit price, micro-lamports
	SellGasFee   uint64
	BuySlippage  float64 // percent
	SellSlippage float64
	AntiMEV      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExcludedToken is a per-user mint that is never replicated.
type ExcludedToken struct {
	ID           int64
	UserID       int64
	TokenAddress string
	CreatedAt    time.Time
}

// ReplicationRecord is the append-only trail of replication attempts,
// exactly one per attempt.
type ReplicationRecord struct {
	ID                int64
	PolicyID          int64
	OriginalSignature string
	CopiedSignature   string
	TokenAddress      string
	Side              TradeSide
	Status            ReplicationStatus
	Error             string
	AmountSol         float64
	CreatedAt         time.Time
}

// LimitOrder is a price-conditional order. Buy orders spend AmountSol, sell
// orders dispose of AmountTokens. TriggerPercent is resolved into
// TriggerPrice when the order is created.
type LimitOrder struct {
	ID             int64
	UserID         int64
	TokenAddress   string
	OrderType      TradeSide
	AmountSol      float64
	AmountTokens   float64
	TriggerPrice   float64 // SOL per token
	TriggerPercent float64
	Slippage       float64
	Status         OrderStatus
	TxHash         string
	CreatedAt      time.Time
	ExecutedAt     *time.Time
}

// Wallet binds a user to their on-chain address and key material. The key is
// stored as base58; encryption at rest belongs to the surrounding system.
type Wallet struct {
	UserID     int64
	Address    string
	PrivateKey string
	CreatedAt  time.Time
}
