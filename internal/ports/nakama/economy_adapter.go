package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"doudizhu/internal/ports"
)

// WalletAdapter implements ports.EconomyPort on Nakama wallets, paying out in a
// single configured currency.
type WalletAdapter struct {
	nk       runtime.NakamaModule
	currency string
}

func NewWalletAdapter(nk runtime.NakamaModule, currency string) *WalletAdapter {
	return &WalletAdapter{nk: nk, currency: currency}
}

// GetBalance reads the user's balance in the adapter's currency.
func (a *WalletAdapter) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return walletBalance(account.Wallet, a.currency)
}

// UpdateBalances settles every non-zero delta in one ledgered batch, so a game
// is paid out entirely or not at all.
func (a *WalletAdapter) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	batch := walletChanges(updates, a.currency)
	if len(batch) == 0 {
		return nil
	}
	if _, err := a.nk.WalletsUpdate(ctx, batch, true); err != nil {
		return fmt.Errorf("failed to settle %d wallets: %w", len(batch), err)
	}
	return nil
}

func walletBalance(raw, currency string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	var wallet map[string]int64
	if err := json.Unmarshal([]byte(raw), &wallet); err != nil {
		return 0, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return wallet[currency], nil
}

// walletChanges merges deltas per user and drops the ones that net to zero.
func walletChanges(updates []ports.WalletUpdate, currency string) []*runtime.WalletUpdate {
	index := make(map[string]*runtime.WalletUpdate, len(updates))
	var batch []*runtime.WalletUpdate
	for _, u := range updates {
		if w, ok := index[u.UserID]; ok {
			w.Changeset[currency] += u.Amount
			continue
		}
		w := &runtime.WalletUpdate{
			UserID:    u.UserID,
			Changeset: map[string]int64{currency: u.Amount},
			Metadata:  u.Metadata,
		}
		index[u.UserID] = w
		batch = append(batch, w)
	}

	out := batch[:0]
	for _, w := range batch {
		if w.Changeset[currency] != 0 {
			out = append(out, w)
		}
	}
	return out
}
