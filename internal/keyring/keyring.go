// Package keyring resolves a user to their signing key material. A failure
// here is fatal for that user's attempt only.
package keyring

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Source yields stored key material for a user, base58 encoded.
type Source interface {
	WalletKey(ctx context.Context, userID int64) (string, error)
}

// KeyMaterialError marks key material that could not be resolved or parsed.
type KeyMaterialError struct {
	UserID int64
	Err    error
}

func (e *KeyMaterialError) Error() string {
	return fmt.Sprintf("key material for user %d: %v", e.UserID, e.Err)
}

func (e *KeyMaterialError) Unwrap() error { return e.Err }

// Keyring turns stored key material into usable signing keys.
type Keyring struct {
	source Source
}

func New(source Source) *Keyring {
	return &Keyring{source: source}
}

// Resolve returns the signing key for userID.
func (k *Keyring) Resolve(ctx context.Context, userID int64) (solana.PrivateKey, error) {
	raw, err := k.source.WalletKey(ctx, userID)
	if err != nil {
		return nil, &KeyMaterialError{UserID: userID, Err: err}
	}
	key, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, &KeyMaterialError{UserID: userID, Err: err}
	}
	return key, nil
}
