package pump

import (
	"encoding/binary"
	"errors"
	"testing"

	"pump_copy/internal/model"
)

func TestTradeRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		data       []byte
		wantSide   model.TradeSide
		wantTokens float64
		wantBound  uint64
	}{
		{
			name:       "buy",
			data:       EncodeBuy(1234.5, 2_000_000_000),
			wantSide:   model.SideBuy,
			wantTokens: 1234.5,
			wantBound:  2_000_000_000,
		},
		{
			name:       "sell",
			data:       EncodeSell(50, 900_000),
			wantSide:   model.SideSell,
			wantTokens: 50,
			wantBound:  900_000,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := DecodeTrade(tc.data)
			if err != nil {
				t.Fatalf("DecodeTrade: %v", err)
			}
			if params.Side != tc.wantSide {
				t.Errorf("side = %s, want %s", params.Side, tc.wantSide)
			}
			if got := params.TokenAmount(); got != tc.wantTokens {
				t.Errorf("token amount = %v, want %v", got, tc.wantTokens)
			}
			if params.Bound != tc.wantBound {
				t.Errorf("bound = %d, want %d", params.Bound, tc.wantBound)
			}
			if !IsTradeInstruction(tc.data) {
				t.Errorf("IsTradeInstruction = false for valid %s data", tc.name)
			}
		})
	}
}

func TestDecodeTradeRejectsMalformedData(t *testing.T) {
	unknown := make([]byte, tradeDataLen)
	binary.LittleEndian.PutUint64(unknown[0:8], 42)

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short buffer", EncodeBuy(1, 1)[:16]},
		{"unknown discriminator", unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTrade(tc.data)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("DecodeTrade error = %v, want *DecodeError", err)
			}
		})
	}
}

func TestIsTradeInstructionIgnoresForeignData(t *testing.T) {
	if IsTradeInstruction([]byte{1, 2, 3}) {
		t.Error("short foreign data classified as trade")
	}
	foreign := make([]byte, tradeDataLen)
	if IsTradeInstruction(foreign) {
		t.Error("zero discriminator classified as trade")
	}
}
