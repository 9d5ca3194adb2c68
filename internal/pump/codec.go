package pump

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"pump_copy/internal/model"
)

const tradeDataLen = 8 + 8 + 8 // discriminator | amount | bound

// DecodeError marks a payload that is not a well-formed pump instruction or
// curve account. It is fatal for the attempt that hit it.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pump decode: %s", e.Reason)
}

// TradeParams are the decoded contents of one buy or sell instruction.
// Amount is the raw token amount (10^6 units per token); Bound is the
// max-cost (buy) or min-output (sell) in lamports.
type TradeParams struct {
	Side   model.TradeSide
	Amount uint64
	Bound  uint64
}

// TokenAmount converts the raw amount into whole tokens.
func (p *TradeParams) TokenAmount() float64 {
	return float64(p.Amount) / TokenUnit
}

func encodeTrade(discriminator, amount, bound uint64) []byte {
	data := make([]byte, tradeDataLen)
	binary.LittleEndian.PutUint64(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], bound)
	return data
}

// EncodeBuy builds buy instruction data for tokenAmount whole tokens with a
// worst-case spend of maxSolCost lamports.
func EncodeBuy(tokenAmount float64, maxSolCost uint64) []byte {
	return encodeTrade(buyDiscriminator, uint64(tokenAmount*TokenUnit), maxSolCost)
}

// EncodeSell builds sell instruction data for tokenAmount whole tokens with
// a floor of minSolOutput lamports.
func EncodeSell(tokenAmount float64, minSolOutput uint64) []byte {
	return encodeTrade(sellDiscriminator, uint64(tokenAmount*TokenUnit), minSolOutput)
}

// DecodeTrade parses instruction data addressed to the pump program. It
// fails with *DecodeError on a short buffer or an unknown discriminator.
func DecodeTrade(data []byte) (*TradeParams, error) {
	if len(data) < tradeDataLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("instruction data too short: %d bytes", len(data))}
	}
	params := &TradeParams{
		Amount: binary.LittleEndian.Uint64(data[8:16]),
		Bound:  binary.LittleEndian.Uint64(data[16:24]),
	}
	switch binary.LittleEndian.Uint64(data[0:8]) {
	case buyDiscriminator:
		params.Side = model.SideBuy
	case sellDiscriminator:
		params.Side = model.SideSell
	default:
		return nil, &DecodeError{Reason: "unknown instruction discriminator"}
	}
	return params, nil
}

// IsTradeInstruction reports whether data carries a buy or sell
// discriminator, without requiring the full payload to be present.
func IsTradeInstruction(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return bytes.Equal(data[:8], discriminatorBytes(buyDiscriminator)) ||
		bytes.Equal(data[:8], discriminatorBytes(sellDiscriminator))
}
