package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickMatch = "quick_match"

	// RpcAdminCancel lets an admin end a running match.
	RpcAdminCancel = "admin_cancel_match"

	// MatchNameDouDizhu is the authoritative match handler name registered with Nakama.
	MatchNameDouDizhu = "doudizhu_match"

	// GameLabel is the "game" field of every match label.
	GameLabel = "doudizhu"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartGame      int64 = 1
	OpPlayCards      int64 = 2
	OpPassTurn       int64 = 3
	OpRequestNewGame int64 = 4
	OpBid            int64 = 5
	OpRequestState   int64 = 6

	// Server -> Client events
	OpPlayerJoined   int64 = 101
	OpPlayerLeft     int64 = 102
	OpGameStarted    int64 = 103
	OpHandDealt      int64 = 104 // send privately
	OpCardPlayed     int64 = 105
	OpTurnPassed     int64 = 106
	OpGameEnded      int64 = 107
	OpBidPlaced      int64 = 108
	OpRedealt        int64 = 109
	OpLandlordChosen int64 = 110
	OpGameCancelled  int64 = 111
	OpGameReset      int64 = 112
	OpTimerSet       int64 = 113
	OpMatchState     int64 = 114 // send privately
	OpGameError      int64 = 120
)

// Guard action names per client op code.
const (
	ActionStart   = "start"
	ActionPlay    = "play"
	ActionPass    = "pass"
	ActionNewGame = "new_game"
	ActionBid     = "bid"
	ActionState   = "state"
	ActionCancel  = "cancel"
)

// CancelReasonAdmin is reported when an admin ends the match.
const CancelReasonAdmin = "admin"
