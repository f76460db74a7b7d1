package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"doudizhu/internal/app"
	"doudizhu/internal/bot"
	"doudizhu/internal/config"
	"doudizhu/internal/domain"
	"doudizhu/internal/guard"
	"doudizhu/internal/ports"
)

const (
	tickRate          = 5 // ticks per second
	gameConfigPath    = "data/game_config.json"
	botIdentitiesPath = "data/bot_identities.json"
)

var errNotOwner = errors.New("only the match owner can do that")

// clientActions maps client op codes to guard action names.
var clientActions = map[int64]string{
	OpStartGame:      ActionStart,
	OpPlayCards:      ActionPlay,
	OpPassTurn:       ActionPass,
	OpRequestNewGame: ActionNewGame,
	OpBid:            ActionBid,
	OpRequestState:   ActionState,
}

var eventOpCodes = map[app.EventKind]int64{
	app.EventPlayerJoined:   OpPlayerJoined,
	app.EventGameStarted:    OpGameStarted,
	app.EventHandDealt:      OpHandDealt,
	app.EventBidPlaced:      OpBidPlaced,
	app.EventRedealt:        OpRedealt,
	app.EventLandlordChosen: OpLandlordChosen,
	app.EventCardPlayed:     OpCardPlayed,
	app.EventTurnPassed:     OpTurnPassed,
	app.EventGameEnded:      OpGameEnded,
	app.EventGameCancelled:  OpGameCancelled,
	app.EventGameReset:      OpGameReset,
	app.EventTimerSet:       OpTimerSet,
}

// matchTimer is the single deadline a match is waiting on, measured in ticks.
type matchTimer struct {
	Key      app.TimerKey
	Deadline int64
}

type timerNotice struct {
	Kind      app.TimerKind `json:"kind"`
	Seat      int           `json:"seat"`
	TimeoutMs int64         `json:"timeout_ms"`
}

type matchStateView struct {
	app.Snapshot
	OwnerID string `json:"owner_id"`
	Tier    string `json:"tier"`
}

type gameError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type adminSignal struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// MatchState holds the authoritative runtime state for the Nakama match handler.
// Nakama runs every callback for one match on a single goroutine, so the game is
// mutated by exactly one writer.
type MatchState struct {
	Tier      string                      `json:"tier"`
	OwnerID   string                      `json:"owner_id"`
	Tick      int64                       `json:"tick"`
	TickRate  int                         `json:"tick_rate"`
	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	App       *app.Service                `json:"-"`
	Game      *domain.Game                `json:"-"` // Never nil; a fresh lobby is a game in waiting_players
	Timer     *matchTimer                 `json:"-"`

	BotsEnabled      bool  `json:"bots_enabled"`
	BotAutoFillTicks int64 `json:"bot_auto_fill_ticks"` // Ticks a lobby idles before AI seats are added
	LastJoinTick     int64 `json:"last_join_tick"`

	Economy  ports.EconomyPort    `json:"-"`
	Limiter  *guard.Limiter       `json:"-"`
	Admins   []string             `json:"-"`
	Verifier *guard.TokenVerifier `json:"-"`

	// Ended makes the next loop pass terminate the match.
	Ended bool `json:"ended"`
}

func newMatchState(sessionID, tier string, cfg *config.GameConfig, economy ports.EconomyPort, rng *rand.Rand) *MatchState {
	if tier == "" {
		tier = cfg.DefaultTier
	}
	opts := cfg.ServiceOptions(tier)
	opts.AIName = bot.SeatName

	state := &MatchState{
		Tier:             tier,
		TickRate:         tickRate,
		Presences:        make(map[string]runtime.Presence),
		App:              app.NewService(rng, opts),
		BotsEnabled:      true,
		BotAutoFillTicks: durationToTicks(cfg.BotAutoFillDelay, tickRate),
		Economy:          economy,
		Limiter:          guard.NewLimiter(cfg.RateLimit.Calls, cfg.RateLimit.Window, time.Now),
		Admins:           cfg.Admin.UserIDs,
	}
	if cfg.Admin.TokenSecret != "" {
		state.Verifier = guard.NewTokenVerifier(cfg.Admin.TokenSecret, cfg.Admin.TokenIssuer)
	}

	game, events := state.App.NewGame(sessionID)
	state.Game = game
	state.trackTimers(events)
	return state
}

func durationToTicks(d time.Duration, rate int) int64 {
	ticks := int64(math.Ceil(d.Seconds() * float64(rate)))
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// trackTimers keeps the deadline table in step with the engine's timer events.
func (ms *MatchState) trackTimers(events []app.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case app.EventTimerSet:
			p := ev.Payload.(app.TimerPayload)
			ms.Timer = &matchTimer{Key: p.Key, Deadline: ms.Tick + durationToTicks(p.Duration, ms.TickRate)}
		case app.EventTimerCleared:
			p := ev.Payload.(app.TimerPayload)
			if ms.Timer != nil && ms.Timer.Key == p.Key {
				ms.Timer = nil
			}
		}
	}
}

// OpenSeats is the number of players the lobby still accepts.
func (ms *MatchState) OpenSeats() int {
	if ms.Game.Phase != domain.PhaseWaiting || ms.Game.Cancelled || ms.Ended {
		return 0
	}
	return domain.PlayerCount - len(ms.Game.Players)
}

// IsMember implements guard.MembershipChecker: members are the seated players.
func (ms *MatchState) IsMember(_ context.Context, _ string, userID string) (bool, error) {
	return ms.Game.PlayerByID(userID) != nil, nil
}

func (ms *MatchState) hasActiveGame(string) bool {
	if ms.Game.Cancelled {
		return false
	}
	return ms.Game.Phase == domain.PhaseBidding || ms.Game.Phase == domain.PhasePlaying
}

func (ms *MatchState) guards(action string) []guard.Guard {
	guards := []guard.Guard{guard.RateLimit(ms.Limiter), guard.RequireMember(ms)}
	switch action {
	case ActionBid, ActionPlay, ActionPass:
		guards = append(guards, guard.RequireActiveGame(ms.hasActiveGame))
	}
	return guards
}

// ensureOwner keeps the owner on a connected human, preferring the lowest seat.
func (ms *MatchState) ensureOwner() {
	if _, ok := ms.Presences[ms.OwnerID]; ok && ms.Game.PlayerByID(ms.OwnerID) != nil {
		return
	}
	ms.OwnerID = ""
	if humans := ms.seatedHumans(); len(humans) > 0 {
		ms.OwnerID = humans[0]
	}
}

// seatedHumans lists connected human players in seat order.
func (ms *MatchState) seatedHumans() []string {
	players := append([]*domain.Player(nil), ms.Game.Players...)
	domain.SortPlayers(players)
	var out []string
	for _, p := range players {
		if _, ok := ms.Presences[p.UserID]; ok && !p.IsAI {
			out = append(out, p.UserID)
		}
	}
	return out
}

func (ms *MatchState) label() (string, error) {
	return matchLabel(ms.OpenSeats(), ms.Game.Phase, ms.Tier)
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	if err := bot.LoadIdentities(botIdentitiesPath); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}
	if err := config.LoadGameConfig(gameConfigPath); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}
	cfg := config.GetGameConfig()

	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	if matchID == "" {
		matchID = "local"
	}
	tier, _ := params["tier"].(string)

	var economy ports.EconomyPort
	if nk != nil {
		economy = NewWalletAdapter(nk, cfg.Economy.Currency)
	}
	state := newMatchState(matchID, tier, cfg, economy, rand.New(rand.NewSource(time.Now().UnixNano())))

	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, ok := env["doudizhu_bots_enabled"]; ok {
			state.BotsEnabled = val == "true"
		}
	}

	label, err := state.label()
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Seated players may always come back.
	if matchState.Game.PlayerByID(presence.GetUserId()) != nil {
		return matchState, true, ""
	}
	if matchState.OpenSeats() <= 0 {
		return matchState, false, "Match full"
	}
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	matchState.Tick = tick

	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p

		if matchState.Game.PlayerByID(userID) == nil {
			events, err := matchState.App.Join(matchState.Game, userID)
			if err != nil {
				delete(matchState.Presences, userID)
				if errors.Is(err, app.ErrDealInvariant) {
					mh.rejectAction(matchState, dispatcher, logger, "", "MatchJoin", err)
				} else {
					logger.Warn("MatchJoin: User %s could not be seated: %v", userID, err)
				}
				if err := dispatcher.MatchKick([]runtime.Presence{p}); err != nil {
					logger.Warn("MatchJoin: Failed to kick %s: %v", userID, err)
				}
				continue
			}
			matchState.LastJoinTick = tick
			mh.dispatchEvents(ctx, matchState, dispatcher, logger, events)
		} else {
			logger.Info("MatchJoin: User %s reconnected.", userID)
		}
		mh.sendState(matchState, dispatcher, logger, p)
	}

	matchState.ensureOwner()
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match. Players who
// drop mid-game stay seated and their turns run out on the timeout policy.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	matchState.Tick = tick

	seatedLeft := false
	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		matchState.Limiter.Forget(userID)
		if matchState.Game.PlayerByID(userID) != nil {
			seatedLeft = true
		}
		logger.Debug("MatchLeave: User %s left.", userID)
		mh.broadcast(matchState, dispatcher, logger, OpPlayerLeft, map[string]interface{}{"user_id": userID}, nil)
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	if seatedLeft && matchState.Game.Phase == domain.PhaseWaiting {
		if err := mh.reseat(ctx, matchState, dispatcher, logger, false); err != nil {
			mh.rejectAction(matchState, dispatcher, logger, "", "MatchLeave", err)
		}
	}

	matchState.ensureOwner()
	mh.updateLabel(matchState, dispatcher, logger)
	if matchState.Ended {
		return nil
	}
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	matchState.Tick = tick
	if matchState.Ended {
		return nil
	}

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	mh.processTimers(ctx, matchState, dispatcher, logger)

	if matchState.BotsEnabled {
		mh.processBots(ctx, matchState, dispatcher, logger)
	}

	if matchState.Ended {
		logger.Info("MatchLoop: Match %s ended.", matchState.Game.SessionID)
		return nil
	}
	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	userID := msg.GetUserId()
	action, ok := clientActions[msg.GetOpCode()]
	if !ok {
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	req := guard.Request{SessionID: state.Game.SessionID, UserID: userID, Action: action}
	if err := guard.Check(ctx, req, state.guards(action)...); err != nil {
		logger.Warn("handleMessage: User %s denied %s: %v", userID, action, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}

	body, err := decodeRequest(msg.GetData())
	if err != nil {
		logger.Warn("handleMessage: Invalid %s request from %s: %v", action, userID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}

	var events []app.Event
	switch action {
	case ActionStart:
		if userID != state.OwnerID {
			err = errNotOwner
			break
		}
		events, err = state.App.StartManually(state.Game)
	case ActionBid:
		var amount int
		if amount, err = intField(body, "amount", 0); err == nil {
			events, err = state.App.Bid(state.Game, userID, amount)
		}
	case ActionPlay:
		var cards []domain.Card
		if cards, err = cardsField(body); err == nil {
			events, err = state.App.Play(state.Game, userID, cards)
		}
	case ActionPass:
		events, err = state.App.Pass(state.Game, userID)
	case ActionNewGame:
		if userID != state.OwnerID {
			err = errNotOwner
			break
		}
		err = mh.reseat(ctx, state, dispatcher, logger, true)
	case ActionState:
		if p, ok := state.Presences[userID]; ok {
			mh.sendState(state, dispatcher, logger, p)
		}
		return
	}
	if err != nil {
		mh.rejectAction(state, dispatcher, logger, userID, action, err)
		return
	}

	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
	mh.updateLabel(state, dispatcher, logger)
}

// processTimers fires the pending deadline once its tick has come.
func (mh *matchHandler) processTimers(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Timer == nil || state.Tick < state.Timer.Deadline {
		return
	}
	key := state.Timer.Key
	state.Timer = nil

	events, err := state.App.Timeout(state.Game, key)
	switch {
	case errors.Is(err, app.ErrStaleTimeout):
		logger.Debug("processTimers: Ignoring stale deadline %s", key)
	case err != nil:
		mh.rejectAction(state, dispatcher, logger, "", "processTimers", err)
	default:
		mh.dispatchEvents(ctx, state, dispatcher, logger, events)
		mh.updateLabel(state, dispatcher, logger)
	}
}

// processBots fills the remaining seats with AI players once the lobby has been
// idle for BotAutoFillTicks.
func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Game.Phase != domain.PhaseWaiting || state.Game.Cancelled || len(state.Game.Players) == 0 {
		return
	}
	if state.Tick-state.LastJoinTick < state.BotAutoFillTicks {
		return
	}

	seated := len(state.Game.Players)
	events, err := state.App.StartManually(state.Game)
	if err != nil {
		logger.Debug("processBots: Auto-fill skipped: %v", err)
		state.LastJoinTick = state.Tick
		return
	}
	logger.Info("processBots: Added %d bots to match %s.", domain.PlayerCount-seated, state.Game.SessionID)
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
	mh.updateLabel(state, dispatcher, logger)
}

// reseat rebuilds the lobby around the connected humans, keeping their seat order.
// With replay set the finished game is reset in place; otherwise a fresh lobby
// replaces a waiting game that lost a player.
func (mh *matchHandler) reseat(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, replay bool) error {
	keep := state.seatedHumans()

	var events []app.Event
	if replay {
		reset, err := state.App.ResetForReplay(state.Game)
		if err != nil {
			return err
		}
		events = reset
	} else {
		game, created := state.App.NewGame(state.Game.SessionID)
		state.Game = game
		events = created
	}

	for _, userID := range keep {
		joined, err := state.App.Join(state.Game, userID)
		if err != nil {
			return err
		}
		events = append(events, joined...)
	}
	state.LastJoinTick = state.Tick

	logger.Info("reseat: Match %s reopened with %d players.", state.Game.SessionID, len(keep))
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
	return nil
}

// dispatchEvents handles the conversion and dispatching of app events to Nakama.
func (mh *matchHandler) dispatchEvents(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	state.trackTimers(events)

	for _, ev := range events {
		payload := ev.Payload
		switch ev.Kind {
		case app.EventTimerCleared:
			continue
		case app.EventTimerSet:
			p := ev.Payload.(app.TimerPayload)
			payload = timerNotice{Kind: p.Key.Kind, Seat: p.Key.Seat, TimeoutMs: p.Duration.Milliseconds()}
		case app.EventGameEnded:
			mh.settle(ctx, state, logger, ev.Payload.(app.GameEndedPayload))
		case app.EventGameCancelled:
			p := ev.Payload.(app.GameCancelledPayload)
			logger.Info("Event: game_cancelled (%s) in match %s", p.Reason, state.Game.SessionID)
			state.Ended = true
		}

		opCode, ok := eventOpCodes[ev.Kind]
		if !ok {
			logger.Warn("Unknown event kind: %v", ev.Kind)
			continue
		}
		mh.broadcast(state, dispatcher, logger, opCode, payload, ev.Recipients)
	}
}

// settle applies the final deltas to human wallets. Bots have no wallet.
func (mh *matchHandler) settle(ctx context.Context, state *MatchState, logger runtime.Logger, p app.GameEndedPayload) {
	if state.Economy == nil {
		return
	}
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)

	updates := make([]ports.WalletUpdate, 0, len(p.Report.Deltas))
	for userID, amount := range p.Report.Deltas {
		player := state.Game.PlayerByID(userID)
		if player == nil || player.IsAI || bot.IsBot(userID) {
			continue
		}
		updates = append(updates, ports.WalletUpdate{
			UserID: userID,
			Amount: amount,
			Metadata: map[string]interface{}{
				"match_id": matchID,
				"reason":   "game_settlement",
				"tier":     state.Tier,
			},
		})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].UserID < updates[j].UserID })

	if err := state.Economy.UpdateBalances(ctx, updates); err != nil {
		logger.Error("settle: Failed to update balances: %v", err)
	}
}

// broadcast sends payload to recipients, or to everyone when recipients is empty.
func (mh *matchHandler) broadcast(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, payload any, recipients []string) {
	data, err := encodePayload(payload)
	if err != nil {
		logger.Error("Failed to marshal op %d: %v", opCode, err)
		return
	}

	var targets []runtime.Presence
	if len(recipients) > 0 {
		for _, uid := range recipients {
			if p, ok := state.Presences[uid]; ok {
				targets = append(targets, p)
			}
		}
		// Intended recipients that are not connected (bots, dropped players)
		// must not turn into a broadcast.
		if len(targets) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, data, targets, nil, true); err != nil {
		logger.Warn("Failed to broadcast op %d: %v", opCode, err)
	}
}

// sendState sends the player their view of the match.
func (mh *matchHandler) sendState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, presence runtime.Presence) {
	view := matchStateView{
		Snapshot: app.TakeSnapshot(state.Game).Redacted(presence.GetUserId()),
		OwnerID:  state.OwnerID,
		Tier:     state.Tier,
	}
	mh.broadcast(state, dispatcher, logger, OpMatchState, view, []string{presence.GetUserId()})
}

// rejectAction reports a failed action. A broken deal ends the match.
func (mh *matchHandler) rejectAction(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID, action string, err error) {
	if errors.Is(err, app.ErrDealInvariant) {
		logger.Error("%s: Aborting match %s: %v", action, state.Game.SessionID, err)
		mh.broadcast(state, dispatcher, logger, OpGameCancelled, app.GameCancelledPayload{Reason: "deal_invariant"}, nil)
		state.Ended = true
		return
	}
	if userID == "" {
		logger.Error("%s: %v", action, err)
		return
	}
	logger.Warn("%s: User %s rejected: %v", action, userID, err)
	mh.sendError(state, dispatcher, logger, userID, err)
}

// sendError sends a game error to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	if _, ok := state.Presences[userID]; !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	mh.broadcast(state, dispatcher, logger, OpGameError, gameError{Code: errorCode(err), Message: err.Error()}, []string{userID})
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, guard.ErrRateLimited):
		return 429
	case errors.Is(err, guard.ErrNotMember), errors.Is(err, guard.ErrNotAdmin), errors.Is(err, errNotOwner):
		return 403
	case errors.Is(err, app.ErrNotYourTurn), errors.Is(err, app.ErrWrongPhase), errors.Is(err, guard.ErrNoActiveGame):
		return 409
	default:
		return 400
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := state.label()
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d grace seconds", graceSeconds)
	return state
}

// MatchSignal accepts an admin cancel: {"action":"cancel","user_id":...,"token":...}.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, "state not found"
	}

	var sig adminSignal
	if err := json.Unmarshal([]byte(data), &sig); err != nil {
		return matchState, "invalid signal"
	}
	if sig.Action != ActionCancel {
		return matchState, "unknown action"
	}

	req := guard.Request{SessionID: matchState.Game.SessionID, UserID: sig.UserID, Action: sig.Action, Token: sig.Token}
	if err := guard.Check(ctx, req, guard.RequireAdmin(matchState.Admins, matchState.Verifier)); err != nil {
		logger.Warn("MatchSignal: Cancel by %s refused: %v", sig.UserID, err)
		return matchState, err.Error()
	}

	logger.Info("MatchSignal: Match %s cancelled by admin %s", matchState.Game.SessionID, sig.UserID)
	mh.broadcast(matchState, dispatcher, logger, OpGameCancelled, app.GameCancelledPayload{Reason: CancelReasonAdmin}, nil)
	matchState.Ended = true
	return matchState, "ok"
}
