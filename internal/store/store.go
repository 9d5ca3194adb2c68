// Package store is the sqlite persistence layer for policies, exclusions,
// replication records, limit orders, and wallets.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"pump_copy/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	user_id      INTEGER PRIMARY KEY,
	address      TEXT NOT NULL,
	private_key  TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS follower_policies (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id              INTEGER NOT NULL,
	name                 TEXT NOT NULL DEFAULT '',
	leader_address       TEXT NOT NULL,
	active               INTEGER NOT NULL DEFAULT 1,
	copy_percentage      REAL NOT NULL DEFAULT 100.0,
	min_amount           REAL NOT NULL DEFAULT 0.0,
	max_amount           REAL,
	total_amount         REAL,
	max_copies_per_token INTEGER,
	copy_sells           INTEGER NOT NULL DEFAULT 1,
	retry_count          INTEGER NOT NULL DEFAULT 1,
	buy_gas_fee          INTEGER NOT NULL DEFAULT 100000,
	sell_gas_fee         INTEGER NOT NULL DEFAULT 100000,
	buy_slippage         REAL NOT NULL DEFAULT 5.0,
	sell_slippage        REAL NOT NULL DEFAULT 1.0,
	anti_mev             INTEGER NOT NULL DEFAULT 0,
	created_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_policies_leader ON follower_policies(leader_address, active);

CREATE TABLE IF NOT EXISTS excluded_tokens (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	token_address TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, token_address)
);

CREATE TABLE IF NOT EXISTS replication_records (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	policy_id          INTEGER NOT NULL,
	original_signature TEXT NOT NULL,
	copied_signature   TEXT NOT NULL DEFAULT '',
	token_address      TEXT NOT NULL,
	side               TEXT NOT NULL,
	status             TEXT NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	amount_sol         REAL NOT NULL DEFAULT 0.0,
	created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_records_policy ON replication_records(policy_id, status);

CREATE TABLE IF NOT EXISTS limit_orders (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL,
	token_address   TEXT NOT NULL,
	order_type      TEXT NOT NULL,
	amount_sol      REAL NOT NULL DEFAULT 0.0,
	amount_tokens   REAL NOT NULL DEFAULT 0.0,
	trigger_price   REAL NOT NULL,
	trigger_percent REAL NOT NULL DEFAULT 0.0,
	slippage        REAL NOT NULL DEFAULT 1.0,
	status          TEXT NOT NULL DEFAULT 'active',
	tx_hash         TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	executed_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON limit_orders(status);
`

// Store wraps the sqlite handle. One logical unit of work maps to one
// statement or transaction here; callers do not hold open transactions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// --- wallets ---

func (s *Store) UpsertWallet(ctx context.Context, w *model.Wallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, address, private_key) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET address = excluded.address, private_key = excluded.private_key`,
		w.UserID, w.Address, w.PrivateKey)
	return err
}

// WalletKey returns the stored key material for a user.
func (s *Store) WalletKey(ctx context.Context, userID int64) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT private_key FROM wallets WHERE user_id = ?`, userID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no wallet for user %d", userID)
	}
	return key, err
}

// --- follower policies ---

func (s *Store) CreatePolicy(ctx context.Context, p *model.FollowerPolicy) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO follower_policies
			(user_id, name, leader_address, active, copy_percentage, min_amount,
			 max_amount, total_amount, max_copies_per_token, copy_sells, retry_count,
			 buy_gas_fee, sell_gas_fee, buy_slippage, sell_slippage, anti_mev)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.LeaderAddress, p.Active, p.CopyPercentage, p.MinAmount,
		nullFloat(p.MaxAmount), nullFloat(p.TotalAmount), nullInt(p.MaxCopiesPerToken),
		p.CopySells, p.RetryCount, p.BuyGasFee, p.SellGasFee, p.BuySlippage,
		p.SellSlippage, p.AntiMEV)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) SetPolicyActive(ctx context.Context, policyID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE follower_policies SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, policyID)
	return err
}

// ActivePolicies returns every active policy.
func (s *Store) ActivePolicies(ctx context.Context) ([]model.FollowerPolicy, error) {
	return s.queryPolicies(ctx, `WHERE active = 1`)
}

// ActivePoliciesForLeader returns the active policies bound to one leader.
func (s *Store) ActivePoliciesForLeader(ctx context.Context, leader string) ([]model.FollowerPolicy, error) {
	return s.queryPolicies(ctx, `WHERE active = 1 AND leader_address = ?`, leader)
}

func (s *Store) queryPolicies(ctx context.Context, where string, args ...interface{}) ([]model.FollowerPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, leader_address, active, copy_percentage, min_amount,
		       max_amount, total_amount, max_copies_per_token, copy_sells, retry_count,
		       buy_gas_fee, sell_gas_fee, buy_slippage, sell_slippage, anti_mev
		FROM follower_policies `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []model.FollowerPolicy
	for rows.Next() {
		var p model.FollowerPolicy
		var maxAmount, totalAmount sql.NullFloat64
		var maxCopies sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.LeaderAddress, &p.Active,
			&p.CopyPercentage, &p.MinAmount, &maxAmount, &totalAmount, &maxCopies,
			&p.CopySells, &p.RetryCount, &p.BuyGasFee, &p.SellGasFee,
			&p.BuySlippage, &p.SellSlippage, &p.AntiMEV); err != nil {
			return nil, err
		}
		if maxAmount.Valid {
			p.MaxAmount = &maxAmount.Float64
		}
		if totalAmount.Valid {
			p.TotalAmount = &totalAmount.Float64
		}
		if maxCopies.Valid {
			p.MaxCopiesPerToken = &maxCopies.Int64
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// --- excluded tokens ---

func (s *Store) AddExcludedToken(ctx context.Context, userID int64, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO excluded_tokens (user_id, token_address) VALUES (?, ?)`,
		userID, token)
	return err
}

func (s *Store) IsTokenExcluded(ctx context.Context, userID int64, token string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM excluded_tokens WHERE user_id = ? AND token_address = ?`,
		userID, token).Scan(&n)
	return n > 0, err
}

// --- replication records ---

func (s *Store) CreateReplication(ctx context.Context, r *model.ReplicationRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO replication_records
			(policy_id, original_signature, copied_signature, token_address, side, status, error, amount_sol)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PolicyID, r.OriginalSignature, r.CopiedSignature, r.TokenAddress,
		string(r.Side), string(r.Status), r.Error, r.AmountSol)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// UpdateReplication moves a record into its terminal state. Records are
// append-only otherwise.
func (s *Store) UpdateReplication(ctx context.Context, r *model.ReplicationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE replication_records
		SET copied_signature = ?, status = ?, error = ?, amount_sol = ?
		WHERE id = ?`,
		r.CopiedSignature, string(r.Status), r.Error, r.AmountSol, r.ID)
	return err
}

// TotalCopied sums SUCCESS amounts for a policy, for total-cap enforcement.
func (s *Store) TotalCopied(ctx context.Context, policyID int64) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(amount_sol) FROM replication_records
		WHERE policy_id = ? AND status = ?`, policyID, string(model.ReplicationSuccess)).Scan(&total)
	return total.Float64, err
}

// SuccessCopies counts SUCCESS replications of one token under a policy.
func (s *Store) SuccessCopies(ctx context.Context, policyID int64, token string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM replication_records
		WHERE policy_id = ? AND token_address = ? AND status = ?`,
		policyID, token, string(model.ReplicationSuccess)).Scan(&n)
	return n, err
}

func (s *Store) RecordsForPolicy(ctx context.Context, policyID int64) ([]model.ReplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, policy_id, original_signature, copied_signature, token_address,
		       side, status, error, amount_sol, created_at
		FROM replication_records WHERE policy_id = ? ORDER BY id`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ReplicationRecord
	for rows.Next() {
		var r model.ReplicationRecord
		if err := rows.Scan(&r.ID, &r.PolicyID, &r.OriginalSignature, &r.CopiedSignature,
			&r.TokenAddress, &r.Side, &r.Status, &r.Error, &r.AmountSol, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- limit orders ---

func (s *Store) CreateLimitOrder(ctx context.Context, o *model.LimitOrder) error {
	if o.Status == "" {
		o.Status = model.OrderActive
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO limit_orders
			(user_id, token_address, order_type, amount_sol, amount_tokens,
			 trigger_price, trigger_percent, slippage, status, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.TokenAddress, string(o.OrderType), o.AmountSol, o.AmountTokens,
		o.TriggerPrice, o.TriggerPercent, o.Slippage, string(o.Status), o.TxHash)
	if err != nil {
		return err
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ActiveLimitOrders(ctx context.Context) ([]model.LimitOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_address, order_type, amount_sol, amount_tokens,
		       trigger_price, trigger_percent, slippage, status, tx_hash
		FROM limit_orders WHERE status = ?`, string(model.OrderActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.LimitOrder
	for rows.Next() {
		var o model.LimitOrder
		if err := rows.Scan(&o.ID, &o.UserID, &o.TokenAddress, &o.OrderType,
			&o.AmountSol, &o.AmountTokens, &o.TriggerPrice, &o.TriggerPercent,
			&o.Slippage, &o.Status, &o.TxHash); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateLimitOrder persists a status transition. Transitions out of a
// terminal state are refused.
func (s *Store) UpdateLimitOrder(ctx context.Context, o *model.LimitOrder) error {
	var executedAt interface{}
	if o.ExecutedAt != nil {
		executedAt = o.ExecutedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE limit_orders SET status = ?, tx_hash = ?, executed_at = ?
		WHERE id = ? AND status = ?`,
		string(o.Status), o.TxHash, executedAt, o.ID, string(model.OrderActive))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("limit order %d is not active", o.ID)
	}
	return nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
