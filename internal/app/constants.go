package app

import "time"

// Defaults used when Options leaves a field zero. Hosts normally fill Options from config.
const (
	DefaultBidTimeout       = 60 * time.Second
	DefaultPlayTimeout      = 75 * time.Second
	DefaultJoinTimeout      = 300 * time.Second
	DefaultAITurnDelay      = 2 * time.Second
	DefaultMaxRedeals       = 3
	DefaultBaseScore        = 1
	DefaultMinHumansToStart = 1
)
