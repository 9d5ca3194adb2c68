package pump

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func encodeCurveAccount(s CurveState) []byte {
	data := make([]byte, 8+curveStateLen)
	binary.LittleEndian.PutUint64(data[0:8], curveDiscriminatorValue)
	binary.LittleEndian.PutUint64(data[8:16], s.VirtualTokenReserves)
	binary.LittleEndian.PutUint64(data[16:24], s.VirtualSolReserves)
	binary.LittleEndian.PutUint64(data[24:32], s.RealTokenReserves)
	binary.LittleEndian.PutUint64(data[32:40], s.RealSolReserves)
	binary.LittleEndian.PutUint64(data[40:48], s.TokenTotalSupply)
	if s.Complete {
		data[48] = 1
	}
	return data
}

func TestDecodeCurveState(t *testing.T) {
	want := CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		RealSolReserves:      0,
		TokenTotalSupply:     1_000_000_000_000_000,
		Complete:             false,
	}
	got, err := DecodeCurveState(encodeCurveAccount(want))
	if err != nil {
		t.Fatalf("DecodeCurveState: %v", err)
	}
	if *got != want {
		t.Errorf("decoded state = %+v, want %+v", *got, want)
	}
}

func TestDecodeCurveStateRejectsMalformedData(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		if _, err := DecodeCurveState(make([]byte, 16)); err == nil {
			t.Fatal("expected error for short buffer")
		}
	})
	t.Run("wrong discriminator", func(t *testing.T) {
		data := encodeCurveAccount(CurveState{VirtualTokenReserves: 1, VirtualSolReserves: 1})
		binary.LittleEndian.PutUint64(data[0:8], 7)
		var decodeErr *DecodeError
		if _, err := DecodeCurveState(data); !errors.As(err, &decodeErr) {
			t.Fatalf("error = %v, want *DecodeError", err)
		}
	})
}

func TestCurvePrice(t *testing.T) {
	// The launch-state curve prices at 30 / 1073e6 SOL per token.
	state := &CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
	}
	price, err := state.Price()
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	want := decimal.NewFromInt(30).Div(decimal.NewFromInt(1_073_000_000))
	if !price.Equal(want) {
		t.Errorf("price = %s, want %s", price, want)
	}
}

func TestCurvePriceRisesAsTokenReservesDrain(t *testing.T) {
	// Buys drain token reserves and add SOL reserves, so each snapshot
	// along that path must price strictly higher than the last.
	states := []CurveState{
		{VirtualTokenReserves: 1_073_000_000_000_000, VirtualSolReserves: 30_000_000_000},
		{VirtualTokenReserves: 900_000_000_000_000, VirtualSolReserves: 35_000_000_000},
		{VirtualTokenReserves: 600_000_000_000_000, VirtualSolReserves: 52_000_000_000},
	}
	prev := decimal.Zero
	for i, s := range states {
		price, err := s.Price()
		if err != nil {
			t.Fatalf("state %d: %v", i, err)
		}
		if !price.GreaterThan(prev) {
			t.Fatalf("state %d: price %s did not rise above %s", i, price, prev)
		}
		prev = price
	}
}

func TestCurvePriceInvalidReserves(t *testing.T) {
	cases := []struct {
		name  string
		state CurveState
	}{
		{"zero tokens", CurveState{VirtualSolReserves: 1}},
		{"zero sol", CurveState{VirtualTokenReserves: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reserveErr *InvalidReserveError
			if _, err := tc.state.Price(); !errors.As(err, &reserveErr) {
				t.Fatalf("error = %v, want *InvalidReserveError", err)
			}
		})
	}
}

type fakeAccountReader struct {
	accounts map[solana.PublicKey][]byte
}

func (f *fakeAccountReader) AccountData(_ context.Context, address solana.PublicKey) ([]byte, error) {
	data, ok := f.accounts[address]
	if !ok {
		return nil, errors.New("account not found")
	}
	return data, nil
}

func TestPricerCurrentPrice(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	curve, err := CurveAddress(mint)
	if err != nil {
		t.Fatalf("CurveAddress: %v", err)
	}

	reader := &fakeAccountReader{accounts: map[solana.PublicKey][]byte{
		curve: encodeCurveAccount(CurveState{
			VirtualTokenReserves: 1_073_000_000_000_000,
			VirtualSolReserves:   30_000_000_000,
		}),
	}}
	price, err := NewPricer(reader).CurrentPrice(context.Background(), mint)
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if !price.IsPositive() {
		t.Errorf("price = %s, want positive", price)
	}

	_, err = NewPricer(&fakeAccountReader{}).CurrentPrice(context.Background(), mint)
	if err == nil {
		t.Error("expected error when the curve account is missing")
	}
}
