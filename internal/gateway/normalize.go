package gateway

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionDetail is the normalized shape of a fetched transaction.
// Instruction program IDs and account indexes are resolved to pubkeys here
// so downstream code never touches the raw RPC envelope.
type TransactionDetail struct {
	Signature    solana.Signature
	Slot         uint64
	Fee          uint64
	LedgerErr    string // empty when the transaction succeeded
	AccountKeys  []solana.PublicKey
	Instructions []InstructionDetail
	PreBalances  []uint64
	PostBalances []uint64
}

// InstructionDetail is one top-level instruction with its accounts resolved.
type InstructionDetail struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// SignatureStatus is the normalized confirmation state of a signature.
type SignatureStatus struct {
	Confirmed bool
	Status    string
	LedgerErr string // empty when the transaction did not fail
}

func normalizeTransaction(sig solana.Signature, out *rpc.GetTransactionResult) (*TransactionDetail, error) {
	if out == nil || out.Transaction == nil {
		return nil, fmt.Errorf("transaction %s: empty response", sig)
	}
	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("transaction %s: decode: %w", sig, err)
	}
	msg := tx.Message

	detail := &TransactionDetail{
		Signature:   sig,
		Slot:        out.Slot,
		AccountKeys: msg.AccountKeys,
	}
	if out.Meta != nil {
		detail.Fee = out.Meta.Fee
		detail.PreBalances = out.Meta.PreBalances
		detail.PostBalances = out.Meta.PostBalances
		if out.Meta.Err != nil {
			detail.LedgerErr = fmt.Sprintf("%v", out.Meta.Err)
		}
	}

	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) {
			continue
		}
		ix := InstructionDetail{
			ProgramID: msg.AccountKeys[ci.ProgramIDIndex],
			Data:      []byte(ci.Data),
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= len(msg.AccountKeys) {
				continue
			}
			ix.Accounts = append(ix.Accounts, msg.AccountKeys[idx])
		}
		detail.Instructions = append(detail.Instructions, ix)
	}
	return detail, nil
}

func normalizeStatuses(out *rpc.GetSignatureStatusesResult) []*SignatureStatus {
	if out == nil {
		return nil
	}
	statuses := make([]*SignatureStatus, len(out.Value))
	for i, raw := range out.Value {
		if raw == nil {
			continue
		}
		st := &SignatureStatus{Status: string(raw.ConfirmationStatus)}
		if raw.Err != nil {
			st.LedgerErr = fmt.Sprintf("%v", raw.Err)
		}
		switch raw.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			st.Confirmed = true
		}
		statuses[i] = st
	}
	return statuses
}

func parseRawAmount(out *rpc.GetTokenAccountBalanceResult) (uint64, error) {
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("token balance: empty response")
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token balance: parse %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}
