package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/parcrypto/starshop/pkg/tonindex"
)

const mainnetConfigURL = "https://ton.org/global.config.json"

// New connects a liteserver pool, derives the V4R2 wallet from the
// mnemonic and returns a ready Client. The pool is released by Close.
func New(ctx context.Context, mnemonic []string, seqno tonindex.Source, cfg Config) (*Client, error) {
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, mainnetConfigURL); err != nil {
		return nil, fmt.Errorf("failed to connect to liteservers: %w", err)
	}

	api := ton.NewAPIClient(pool)
	w, err := tonwallet.FromSeed(api, mnemonic, tonwallet.V4R2)
	if err != nil {
		pool.Stop()
		return nil, fmt.Errorf("failed to derive wallet from mnemonic: %w", err)
	}

	client := NewFromParts(&tonSubmitter{w: w}, seqno, w.WalletAddress().String(), cfg)
	client.close = pool.Stop
	return client, nil
}

// tonSubmitter signs and submits transfers through a tonutils V4R2 wallet.
type tonSubmitter struct {
	w *tonwallet.Wallet
}

var _ Submitter = (*tonSubmitter)(nil)

func (s *tonSubmitter) Submit(ctx context.Context, destination string, amountNano int64, memo string) (string, error) {
	to, err := address.ParseAddr(destination)
	if err != nil {
		return "", fmt.Errorf("invalid destination address: %w", err)
	}

	msg, err := s.w.BuildTransfer(to, tlb.FromNanoTON(big.NewInt(amountNano)), true, memo)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer: %w", err)
	}

	hash, err := s.w.SendManyGetInMsgHash(ctx, []*tonwallet.Message{msg})
	if err != nil {
		return "", fmt.Errorf("failed to send transfer: %w", err)
	}
	return hex.EncodeToString(hash), nil
}
