// Package bot names and provisions the accounts that fill AI seats.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"

	"doudizhu/internal/domain"
)

type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarIndex int    `json:"avatar_index"`
}

var (
	mu                sync.RWMutex
	botIdentities     []BotIdentity
	botIDMap          map[string]bool
	botDisplayNameMap map[string]string
	loadOnce          sync.Once
	provisionOnce     sync.Once
	loadErr           error
)

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read bot identities: %w", err)
			return
		}
		var identities []BotIdentity
		if err := json.Unmarshal(data, &identities); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal bot identities: %w", err)
			return
		}
		SetIdentities(identities)
	})
	return loadErr
}

// SetIdentities replaces the pool. Identities without a UserID are kept for
// provisioning but not recognized by IsBot until provisioned.
func SetIdentities(identities []BotIdentity) {
	mu.Lock()
	defer mu.Unlock()
	botIdentities = append([]BotIdentity(nil), identities...)
	botIDMap = make(map[string]bool)
	botDisplayNameMap = make(map[string]string)
	for _, identity := range botIdentities {
		if identity.UserID != "" {
			mapIdentity(identity)
		}
	}
}

func mapIdentity(identity BotIdentity) {
	botIDMap[identity.UserID] = true
	name := identity.DisplayName
	if name == "" {
		name = identity.Username
	}
	botDisplayNameMap[identity.UserID] = name
}

// ProvisionBots ensures that bot accounts exist in the Nakama database and have the is_bot metadata.
func ProvisionBots(ctx context.Context, nk runtime.NakamaModule, logger runtime.Logger) {
	provisionOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		for i := range botIdentities {
			identity := &botIdentities[i]
			if identity.DeviceID == "" {
				continue
			}

			userID, username, _, err := nk.AuthenticateDevice(ctx, identity.DeviceID, identity.Username, true)
			if err != nil {
				logger.Error("ProvisionBots: Failed to authenticate bot %s: %v", identity.Username, err)
				continue
			}
			identity.UserID = userID
			identity.Username = username

			metadata := map[string]interface{}{
				"is_bot":       true,
				"avatar_index": identity.AvatarIndex,
			}
			if err := nk.AccountUpdateId(ctx, userID, identity.Username, metadata, identity.DisplayName, "", "", "", ""); err != nil {
				logger.Warn("ProvisionBots: Failed to update bot account %s: %v", userID, err)
			}

			mapIdentity(*identity)
			logger.Info("ProvisionBots: Bot %s (%s) is ready.", identity.DisplayName, userID)
		}
	})
}

// SeatName picks the AI user ID for seat in sessionID. Seats of one session
// always get distinct identities; with fewer than three provisioned bots a
// synthetic ID is used instead.
func SeatName(sessionID string, seat int) string {
	mu.RLock()
	defer mu.RUnlock()

	var ready []BotIdentity
	for _, identity := range botIdentities {
		if identity.UserID != "" {
			ready = append(ready, identity)
		}
	}
	if len(ready) < domain.PlayerCount {
		return fmt.Sprintf("bot-%s-%d", sessionID, seat)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	offset := int(h.Sum32() % uint32(len(ready)))
	return ready[(offset+seat)%len(ready)].UserID
}

// DisplayName returns the display name for a bot ID, or an empty string if not a bot.
func DisplayName(userID string) string {
	mu.RLock()
	defer mu.RUnlock()
	return botDisplayNameMap[userID]
}

// IsBot reports whether the given user ID belongs to the bot pool.
func IsBot(userID string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return botIDMap[userID]
}
