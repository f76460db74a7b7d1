package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"doudizhu/internal/config"
	"doudizhu/internal/domain"
)

// QuickMatchRequest is the optional payload of quick_match.
type QuickMatchRequest struct {
	Tier string `json:"tier"`
}

// QuickMatchResponse is the payload returned to clients when requesting a lobby-capable match.
type QuickMatchResponse struct {
	MatchID   string `json:"match_id"`
	IsNew     bool   `json:"is_new"`
	Tier      string `json:"tier"`
	BaseScore int64  `json:"base_score"`
	Balance   int64  `json:"balance"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcAdminCancel, rpcAdminCancel)
}

func quickMatchQuery(tier string) string {
	return fmt.Sprintf("+label.game:%s +label.phase:%s +label.open:>=1 +label.tier:%s", GameLabel, domain.PhaseWaiting, tier)
}

func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req QuickMatchRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid quick_match payload", 3)
		}
	}
	if req.Tier == "" {
		req.Tier = config.GetGameConfig().DefaultTier
	}

	resp := QuickMatchResponse{Tier: req.Tier, BaseScore: config.GetBaseScore(req.Tier)}
	if balance, err := NewWalletAdapter(nk, config.GetGameConfig().Economy.Currency).GetBalance(ctx, userID); err == nil {
		resp.Balance = balance
	} else {
		logger.Warn("rpcQuickMatch [User:%s]: Could not read balance: %v", userID, err)
	}

	limit := 10
	authoritative := true
	minSize := 1
	maxSize := domain.PlayerCount - 1

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, quickMatchQuery(req.Tier))
	if err != nil {
		logger.Error("MatchList error: %v", err)
		return "", err
	}

	if len(matches) > 0 {
		resp.MatchID = matches[0].MatchId
		logger.Info("rpcQuickMatch [User:%s]: Found existing match %s", userID, resp.MatchID)
	} else {
		// Seat assignment happens in MatchJoin (server-authoritative).
		resp.MatchID, err = nk.MatchCreate(ctx, MatchNameDouDizhu, map[string]interface{}{"tier": req.Tier})
		if err != nil {
			logger.Error("MatchCreate error: %v", err)
			return "", err
		}
		resp.IsNew = true
		logger.Info("rpcQuickMatch [User:%s]: Created new match %s", userID, resp.MatchID)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
