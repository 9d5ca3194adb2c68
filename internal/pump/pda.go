package pump

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// CurveAddress derives the bonding-curve PDA for a mint.
func CurveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve for %s: %w", mint, err)
	}
	return addr, nil
}

// AssociatedCurveAddress derives the curve's own token account for the mint.
func AssociatedCurveAddress(mint, curve solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated curve account for %s: %w", mint, err)
	}
	return addr, nil
}

// TradeAccounts is the fixed account list of a buy or sell instruction, in
// program order.
func TradeAccounts(mint, curve, associatedCurve, userTokenAccount, user solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(GlobalAccount, false, false),
		solana.NewAccountMeta(FeeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(curve, true, false),
		solana.NewAccountMeta(associatedCurve, true, false),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(EventAuthority, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	}
}
