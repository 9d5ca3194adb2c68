// Command trade submits a single pump.fun buy or sell from the command
// line, sized and signed with the local environment's wallet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/ratelimit"

	"pump_copy/internal/common"
	"pump_copy/internal/config"
	"pump_copy/internal/executor"
	"pump_copy/internal/gateway"
	"pump_copy/internal/model"
	"pump_copy/internal/pump"
)

func main() {
	side := flag.String("side", "buy", "buy or sell")
	mintArg := flag.String("mint", "", "token mint address")
	amount := flag.Float64("amount", 0, "SOL to spend (buy)")
	tokens := flag.Float64("tokens", 0, "tokens to sell")
	percent := flag.Float64("percent", 0, "percentage of holding to sell")
	slippage := flag.Float64("slippage", 5, "slippage tolerance, percent")
	fee := flag.Uint64("fee", 100_000, "compute unit price, micro-lamports")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	common.SetLogLevel(cfg.LogLevel)

	mint, err := solana.PublicKeyFromBase58(*mintArg)
	if err != nil {
		fail("invalid mint: %v", err)
	}
	key, err := solana.PrivateKeyFromBase58(os.Getenv("WALLET_PRIVATE_KEY"))
	if err != nil {
		fail("WALLET_PRIVATE_KEY: %v", err)
	}

	intent := executor.Intent{
		Mint:        mint,
		Slippage:    *slippage,
		PriorityFee: *fee,
	}
	switch strings.ToLower(*side) {
	case "buy":
		if *amount <= 0 {
			fail("buy requires -amount > 0")
		}
		intent.Side = model.SideBuy
		intent.AmountSol = *amount
	case "sell":
		if *tokens <= 0 && *percent <= 0 {
			fail("sell requires -tokens or -percent")
		}
		intent.Side = model.SideSell
		intent.AmountTokens = *tokens
		intent.SellPercent = *percent
	default:
		fail("unknown side %q", *side)
	}

	chain := gateway.New(cfg.RPCEndpoints, ratelimit.New(cfg.RateLimit))
	exec := executor.New(chain)

	ctx := context.Background()
	price, err := pump.NewPricer(chain).CurrentPrice(ctx, mint)
	if err == nil {
		fmt.Printf("current price: %s SOL per token\n", price.String())
	}

	sig, err := exec.Execute(ctx, key, intent)
	if err != nil {
		fail("trade failed: %v", err)
	}
	fmt.Printf("confirmed: https://solscan.io/tx/%s\n", sig)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
