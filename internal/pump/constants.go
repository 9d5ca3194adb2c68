// Package pump holds the binary protocol of the pump.fun bonding-curve
// program: account layout, instruction wire format, price math, and the
// program-derived addresses the executor needs.
package pump

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	ProgramID      = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	GlobalAccount  = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	FeeRecipient   = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	EventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

const (
	// TokenDecimals is fixed for every bonding-curve token.
	TokenDecimals  = 6
	TokenUnit      = 1_000_000
	LamportsPerSol = 1_000_000_000
)

const (
	curveDiscriminatorValue uint64 = 6966180631402821399
	buyDiscriminator        uint64 = 16927863322537952870
	sellDiscriminator       uint64 = 12502976635542562355
)

func discriminatorBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
