package pump

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const curveStateLen = 8*5 + 1 // five u64 fields plus the completion flag

// CurveState is an immutable snapshot of a bonding-curve account, fetched
// per pricing call.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// InvalidReserveError marks a curve snapshot whose reserves cannot price
// anything.
type InvalidReserveError struct {
	TokenReserves uint64
	SolReserves   uint64
}

func (e *InvalidReserveError) Error() string {
	return fmt.Sprintf("invalid curve reserves: tokens=%d sol=%d", e.TokenReserves, e.SolReserves)
}

// DecodeCurveState parses a raw bonding-curve account payload: an 8-byte
// discriminator followed by little-endian fields.
func DecodeCurveState(data []byte) (*CurveState, error) {
	if len(data) < 8+curveStateLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("curve account too short: %d bytes", len(data))}
	}
	if !bytes.Equal(data[:8], discriminatorBytes(curveDiscriminatorValue)) {
		return nil, &DecodeError{Reason: "curve account discriminator mismatch"}
	}
	var state CurveState
	if err := bin.NewBinDecoder(data[8:]).Decode(&state); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	return &state, nil
}

// Price is the spot price in SOL per token: (virtual SOL reserves scaled to
// SOL) over (virtual token reserves scaled to tokens).
func (s *CurveState) Price() (decimal.Decimal, error) {
	if s.VirtualTokenReserves == 0 || s.VirtualSolReserves == 0 {
		return decimal.Zero, &InvalidReserveError{
			TokenReserves: s.VirtualTokenReserves,
			SolReserves:   s.VirtualSolReserves,
		}
	}
	sol := decimal.NewFromUint64(s.VirtualSolReserves).Div(decimal.NewFromInt(LamportsPerSol))
	tokens := decimal.NewFromUint64(s.VirtualTokenReserves).Div(decimal.NewFromInt(TokenUnit))
	return sol.Div(tokens), nil
}

// AccountReader is the slice of the RPC gateway the pricer needs.
type AccountReader interface {
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// Pricer resolves a mint to its bonding curve and computes the current spot
// price from a fresh account snapshot.
type Pricer struct {
	reader AccountReader
}

func NewPricer(reader AccountReader) *Pricer {
	return &Pricer{reader: reader}
}

// CurveStateForMint fetches and decodes the bonding-curve account of mint.
func (p *Pricer) CurveStateForMint(ctx context.Context, mint solana.PublicKey) (*CurveState, error) {
	curve, err := CurveAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := p.reader.AccountData(ctx, curve)
	if err != nil {
		return nil, fmt.Errorf("fetch curve %s: %w", curve, err)
	}
	return DecodeCurveState(data)
}

// CurrentPrice returns the spot price in SOL per token for mint.
func (p *Pricer) CurrentPrice(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	state, err := p.CurveStateForMint(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return state.Price()
}
