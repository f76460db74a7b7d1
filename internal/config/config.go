package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"doudizhu/internal/app"
	"doudizhu/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. DOUDIZHU_BID_TIMEOUT=30s.
const EnvPrefix = "DOUDIZHU"

type ScoreTier struct {
	ID        string `mapstructure:"id" json:"id"`
	BaseScore int64  `mapstructure:"base_score" json:"base_score"`
}

// RuleConfig toggles the optional kicker shapes.
type RuleConfig struct {
	AllowAirplaneWithSingles bool `mapstructure:"allow_airplane_with_singles" json:"allow_airplane_with_singles"`
	AllowQuadWithSingles     bool `mapstructure:"allow_quad_with_singles" json:"allow_quad_with_singles"`
	AllowQuadWithPairs       bool `mapstructure:"allow_quad_with_pairs" json:"allow_quad_with_pairs"`
}

type RateLimitConf struct {
	Calls  int           `mapstructure:"calls" json:"calls"`
	Window time.Duration `mapstructure:"window" json:"window"`
}

type AdminConf struct {
	UserIDs     []string `mapstructure:"user_ids" json:"user_ids"`
	TokenSecret string   `mapstructure:"token_secret" json:"token_secret"`
	TokenIssuer string   `mapstructure:"token_issuer" json:"token_issuer"`
}

type RedisConf struct {
	Addr      string        `mapstructure:"addr" json:"addr"`
	Password  string        `mapstructure:"password" json:"password"`
	DB        int           `mapstructure:"db" json:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" json:"ttl"`
}

// EconomyConf names the Nakama wallet key scores are settled in.
type EconomyConf struct {
	Currency string `mapstructure:"currency" json:"currency"`
}

type LogConf struct {
	Level string `mapstructure:"level" json:"level"`
}

type GameConfig struct {
	DefaultTier string      `mapstructure:"default_tier" json:"default_tier"`
	Tiers       []ScoreTier `mapstructure:"tiers" json:"tiers"`

	BidTimeout  time.Duration `mapstructure:"bid_timeout" json:"bid_timeout"`
	PlayTimeout time.Duration `mapstructure:"play_timeout" json:"play_timeout"`
	JoinTimeout time.Duration `mapstructure:"join_timeout" json:"join_timeout"`
	AITurnDelay time.Duration `mapstructure:"ai_turn_delay" json:"ai_turn_delay"`
	// BotAutoFillDelay is how long a lone human waits before AI seats are added.
	BotAutoFillDelay time.Duration `mapstructure:"bot_auto_fill_delay" json:"bot_auto_fill_delay"`

	MaxRedeals       int `mapstructure:"max_redeals" json:"max_redeals"`
	MinHumansToStart int `mapstructure:"min_humans_to_start" json:"min_humans_to_start"`

	Rules     RuleConfig    `mapstructure:"rules" json:"rules"`
	RateLimit RateLimitConf `mapstructure:"rate_limit" json:"rate_limit"`
	Admin     AdminConf     `mapstructure:"admin" json:"admin"`
	Redis     RedisConf     `mapstructure:"redis" json:"redis"`
	Economy   EconomyConf   `mapstructure:"economy" json:"economy"`
	Log       LogConf       `mapstructure:"log" json:"log"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_tier", "classic")
	v.SetDefault("tiers", []map[string]any{{"id": "classic", "base_score": app.DefaultBaseScore}})
	v.SetDefault("bid_timeout", app.DefaultBidTimeout)
	v.SetDefault("play_timeout", app.DefaultPlayTimeout)
	v.SetDefault("join_timeout", app.DefaultJoinTimeout)
	v.SetDefault("ai_turn_delay", app.DefaultAITurnDelay)
	v.SetDefault("bot_auto_fill_delay", 15*time.Second)
	v.SetDefault("max_redeals", app.DefaultMaxRedeals)
	v.SetDefault("min_humans_to_start", app.DefaultMinHumansToStart)
	v.SetDefault("rules.allow_airplane_with_singles", true)
	v.SetDefault("rules.allow_quad_with_singles", true)
	v.SetDefault("rules.allow_quad_with_pairs", true)
	v.SetDefault("rate_limit.calls", 5)
	v.SetDefault("rate_limit.window", 10*time.Second)
	v.SetDefault("admin.user_ids", []string{})
	v.SetDefault("admin.token_secret", "")
	v.SetDefault("admin.token_issuer", "doudizhu")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "doudizhu:")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("economy.currency", "chips")
	v.SetDefault("log.level", "info")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func decode(v *viper.Viper) (*GameConfig, error) {
	var c GameConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads path (JSON, YAML or TOML by extension) over the defaults and applies
// DOUDIZHU_* environment overrides. An empty path uses defaults and env only.
func Load(path string) (*GameConfig, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
	}
	return decode(v)
}

// Default returns the built-in configuration with environment overrides applied.
// Overrides that fail validation are ignored.
func Default() *GameConfig {
	if c, err := decode(newViper("")); err == nil {
		return c
	}
	v := viper.New()
	setDefaults(v)
	c := &GameConfig{}
	_ = v.Unmarshal(c)
	return c
}

// LoadGameConfig loads the process-wide game configuration from the given path once.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		cfg, loadErr = Load(path)
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or the defaults when none was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return Default()
	}
	return cfg
}

// GetBaseScore returns the base score for a given tier ID, or the default tier's.
func GetBaseScore(tierID string) int64 {
	return GetGameConfig().BaseScore(tierID)
}

// BaseScore resolves tierID, falling back to the default tier and then to 1.
func (c *GameConfig) BaseScore(tierID string) int64 {
	target := tierID
	if target == "" {
		target = c.DefaultTier
	}
	for _, tier := range c.Tiers {
		if tier.ID == target {
			return tier.BaseScore
		}
	}
	for _, tier := range c.Tiers {
		if tier.ID == c.DefaultTier {
			return tier.BaseScore
		}
	}
	return app.DefaultBaseScore
}

// Validate rejects settings the engine cannot run with.
func (c *GameConfig) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"bid_timeout":   c.BidTimeout,
		"play_timeout":  c.PlayTimeout,
		"join_timeout":  c.JoinTimeout,
		"ai_turn_delay": c.AITurnDelay,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.MinHumansToStart < 1 || c.MinHumansToStart > domain.PlayerCount {
		errs = append(errs, fmt.Errorf("min_humans_to_start must be within 1..%d, got %d", domain.PlayerCount, c.MinHumansToStart))
	}
	for _, tier := range c.Tiers {
		if tier.BaseScore <= 0 {
			errs = append(errs, fmt.Errorf("tier %q base_score must be positive", tier.ID))
		}
	}
	if c.RateLimit.Calls < 0 || (c.RateLimit.Calls > 0 && c.RateLimit.Window <= 0) {
		errs = append(errs, fmt.Errorf("rate_limit needs a positive window"))
	}
	if c.Economy.Currency == "" {
		errs = append(errs, fmt.Errorf("economy.currency must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid game config: %w", errors.Join(errs...))
	}
	return nil
}

// DomainRules converts the rule toggles.
func (c *GameConfig) DomainRules() domain.Rules {
	return domain.Rules{
		AllowAirplaneWithSingles: c.Rules.AllowAirplaneWithSingles,
		AllowQuadWithSingles:     c.Rules.AllowQuadWithSingles,
		AllowQuadWithPairs:       c.Rules.AllowQuadWithPairs,
	}
}

// ServiceOptions maps the config into state machine options for tierID.
func (c *GameConfig) ServiceOptions(tierID string) app.Options {
	return app.Options{
		BidTimeout:       c.BidTimeout,
		PlayTimeout:      c.PlayTimeout,
		JoinTimeout:      c.JoinTimeout,
		AITurnDelay:      c.AITurnDelay,
		MaxRedeals:       c.MaxRedeals,
		MinHumansToStart: c.MinHumansToStart,
		BaseScore:        c.BaseScore(tierID),
		Rules:            c.DomainRules(),
	}
}

// Watch loads path and calls onChange with every valid revision written to it
// afterwards. Invalid revisions are reported through onError and skipped.
func Watch(path string, onChange func(*GameConfig), onError func(error)) (*GameConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}
	initial, err := decode(v)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	v.OnConfigChange(func(in fsnotify.Event) {
		if !in.Has(fsnotify.Write) && !in.Has(fsnotify.Create) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", in.Name, err))
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return initial, nil
}
