// Command doudizhu is the operator tool that ships next to the Nakama plugin:
// it runs AI-only simulations, issues admin tokens and checks config edits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"doudizhu/internal/config"
	"doudizhu/internal/guard"
	"doudizhu/internal/logging"
	"doudizhu/internal/sim"
	"doudizhu/internal/store"
)

var (
	configFile string
	logLevel   string

	sessions  int
	seed      int64
	turnDelay time.Duration
	tier      string
	useRedis  bool
	restore   bool

	tokenUser string
	tokenTTL  time.Duration
)

var logger = logging.New("doudizhu", "info")

func loadConfig() (*config.GameConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:          "doudizhu",
	Short:        "Dou Dizhu engine tooling",
	SilenceUsage: true,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play AI-only sessions against real timers and print the tallies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := cfg.ServiceOptions(tier)
		opts.AITurnDelay = turnDelay

		simCfg := sim.Config{
			Sessions: sessions,
			Options:  opts,
			Seed:     seed,
			Restore:  restore,
			Logger:   logger,
		}
		if useRedis {
			cli, err := store.DialRedis(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer cli.Close()
			simCfg.Store = store.NewRedisStore(cli, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
			logger.Info("simulate: persisting snapshots to redis %s", cfg.Redis.Addr)
		}

		logger.Info("simulate: %d sessions, tier %s, base score %d", sessions, tier, opts.BaseScore)
		sum, err := sim.Run(ctx, simCfg)
		fmt.Fprintln(cmd.OutOrStdout(), sum)
		return err
	},
}

var tokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Issue an admin token for the cancel RPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := guard.NewTokenVerifier(cfg.Admin.TokenSecret, cfg.Admin.TokenIssuer).Issue(tokenUser, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Validate the config file on every write until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		initial, err := config.Watch(configFile, func(next *config.GameConfig) {
			logger.SetLevel(next.Log.Level)
			logger.Info("watch: reloaded %s, %d tiers, default %s", configFile, len(next.Tiers), next.DefaultTier)
		}, func(err error) {
			logger.Error("watch: %v", err)
		})
		if err != nil {
			return err
		}
		logger.SetLevel(initial.Log.Level)
		logger.Info("watch: %s is valid, waiting for changes", configFile)
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "data/game_config.json", "game config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config)")

	simulateCmd.Flags().IntVar(&sessions, "sessions", 100, "number of sessions to play")
	simulateCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "shuffle seed")
	simulateCmd.Flags().DurationVar(&turnDelay, "turn-delay", time.Millisecond, "delay before each AI move")
	simulateCmd.Flags().StringVar(&tier, "tier", "", "score tier (default tier when empty)")
	simulateCmd.Flags().BoolVar(&useRedis, "redis", false, "persist snapshots to the configured redis")
	simulateCmd.Flags().BoolVar(&restore, "restore", false, "resume sessions left in the store by an earlier run")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user ID the token is issued to")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(simulateCmd, tokenCmd, watchCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("doudizhu: %v", err)
		os.Exit(1)
	}
}
