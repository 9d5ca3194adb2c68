package executor

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// LedgerRejection means the ledger included and rejected the transaction.
// Resubmitting the same transaction cannot succeed.
type LedgerRejection struct {
	Signature solana.Signature
	Cause     string
}

func (e *LedgerRejection) Error() string {
	return fmt.Sprintf("transaction %s rejected by ledger: %s", e.Signature, e.Cause)
}

// ConfirmationTimeout means the confirmation poll budget ran out without a
// terminal answer. The caller decides whether to resubmit.
type ConfirmationTimeout struct {
	Signature solana.Signature
	Attempts  int
}

func (e *ConfirmationTimeout) Error() string {
	return fmt.Sprintf("transaction %s unconfirmed after %d attempts", e.Signature, e.Attempts)
}

// IsLedgerRejection reports whether err carries a ledger rejection anywhere
// in its chain.
func IsLedgerRejection(err error) bool {
	var lr *LedgerRejection
	return errors.As(err, &lr)
}
