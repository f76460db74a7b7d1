package nakama

import (
	"testing"

	"doudizhu/internal/ports"
)

func TestWalletBalance(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "Configured currency", raw: `{"chips": 250, "gems": 3}`, want: 250},
		{name: "Missing currency", raw: `{"gems": 3}`, want: 0},
		{name: "Empty wallet", raw: "", want: 0},
		{name: "Corrupt wallet", raw: `{"chips":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := walletBalance(tt.raw, "chips")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("balance = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWalletChanges(t *testing.T) {
	batch := walletChanges([]ports.WalletUpdate{
		{UserID: "u0", Amount: 40},
		{UserID: "u1", Amount: -20},
		{UserID: "u2", Amount: 0},
		{UserID: "u1", Amount: -20},
		{UserID: "u3", Amount: 5},
		{UserID: "u3", Amount: -5},
	}, "gold")

	if len(batch) != 2 {
		t.Fatalf("batch has %d entries, want 2: %+v", len(batch), batch)
	}
	want := map[string]int64{"u0": 40, "u1": -40}
	for _, w := range batch {
		if got := w.Changeset["gold"]; got != want[w.UserID] {
			t.Errorf("%s changeset = %v, want %d gold", w.UserID, w.Changeset, want[w.UserID])
		}
	}
	if got := walletChanges(nil, "gold"); len(got) != 0 {
		t.Error("empty input produced updates")
	}
}
