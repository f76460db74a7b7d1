package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// AdminCancelRequest is the payload of admin_cancel_match. Token is an admin
// token issued to the caller; users on the configured allowlist may omit it.
type AdminCancelRequest struct {
	MatchID string `json:"match_id"`
	Token   string `json:"token"`
}

// rpcAdminCancel forwards the request to the match, which checks the caller
// before ending the game.
func rpcAdminCancel(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req AdminCancelRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.MatchID == "" {
		return "", runtime.NewError("match_id is required", 3)
	}

	signal, err := json.Marshal(adminSignal{Action: ActionCancel, UserID: userID, Token: req.Token})
	if err != nil {
		return "", err
	}
	result, err := nk.MatchSignal(ctx, req.MatchID, string(signal))
	if err != nil {
		logger.Error("rpcAdminCancel [User:%s]: Failed to signal match %s: %v", userID, req.MatchID, err)
		return "", err
	}
	if result != "ok" {
		logger.Warn("rpcAdminCancel [User:%s]: Match %s refused: %s", userID, req.MatchID, result)
		return "", runtime.NewError(result, 7)
	}

	logger.Info("rpcAdminCancel [User:%s]: Match %s cancelled", userID, req.MatchID)
	return `{"cancelled":true}`, nil
}
