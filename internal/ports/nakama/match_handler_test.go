package nakama

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"doudizhu/internal/app"
	"doudizhu/internal/bot"
	"doudizhu/internal/config"
	"doudizhu/internal/domain"
	"doudizhu/internal/guard"
	"doudizhu/internal/ports"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type testPresence struct {
	userID string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.userID }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node-1" }

type testMessage struct {
	testPresence
	opCode int64
	data   []byte
}

func (m testMessage) GetOpCode() int64      { return m.opCode }
func (m testMessage) GetData() []byte       { return m.data }
func (m testMessage) GetReliable() bool     { return true }
func (m testMessage) GetReceiveTime() int64 { return 0 }

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent   []sentMessage
	labels []string
	kicked []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.sent = append(md.sent, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetUserId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

// messages returns every message with opCode, decoded.
func (md *mockDispatcher) messages(t *testing.T, opCode int64) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, msg := range md.sent {
		if msg.opCode != opCode {
			continue
		}
		s := &structpb.Struct{}
		if err := proto.Unmarshal(msg.data, s); err != nil {
			t.Fatalf("op %d payload is not a Struct: %v", opCode, err)
		}
		out = append(out, s.AsMap())
	}
	return out
}

func (md *mockDispatcher) sentTo(opCode int64, userID string) int {
	n := 0
	for _, msg := range md.sent {
		if msg.opCode != opCode {
			continue
		}
		for _, r := range msg.recipients {
			if r == userID {
				n++
			}
		}
	}
	return n
}

type mockEconomy struct {
	updates []ports.WalletUpdate
}

func (me *mockEconomy) GetBalance(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (me *mockEconomy) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	me.updates = append(me.updates, updates...)
	return nil
}

func newTestMatch(t *testing.T, mutate func(*config.GameConfig)) (*matchHandler, *MatchState, *mockDispatcher, *mockEconomy) {
	t.Helper()
	bot.SetIdentities(nil)
	cfg := config.Default()
	cfg.BotAutoFillDelay = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	economy := &mockEconomy{}
	state := newMatchState("match-1", "", cfg, economy, rand.New(rand.NewSource(7)))
	return &matchHandler{}, state, &mockDispatcher{}, economy
}

func joinAll(mh *matchHandler, state *MatchState, dispatcher *mockDispatcher, tick int64, users ...string) *MatchState {
	presences := make([]runtime.Presence, len(users))
	for i, u := range users {
		presences[i] = testPresence{userID: u}
	}
	return mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, dispatcher, tick, state, presences).(*MatchState)
}

func send(t *testing.T, userID string, opCode int64, fields map[string]interface{}) runtime.MatchData {
	t.Helper()
	var data []byte
	if fields != nil {
		s, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatalf("NewStruct: %v", err)
		}
		if data, err = proto.Marshal(s); err != nil {
			t.Fatalf("Marshal: %v", err)
		}
	}
	return testMessage{testPresence: testPresence{userID: userID}, opCode: opCode, data: data}
}

func loop(mh *matchHandler, state *MatchState, dispatcher *mockDispatcher, tick int64, msgs ...runtime.MatchData) interface{} {
	return mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, tick, state, msgs)
}

func TestMatchLabel(t *testing.T) {
	label, err := matchLabel(2, domain.PhaseWaiting, "classic")
	if err != nil {
		t.Fatalf("matchLabel: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(label), &got); err != nil {
		t.Fatalf("label is not JSON: %v", err)
	}
	want := map[string]interface{}{"game": "doudizhu", "open": 2.0, "phase": "waiting_players", "tier": "classic"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("label[%s] = %v, want %v", k, got[k], v)
		}
	}
}

func TestQuickMatchQuery(t *testing.T) {
	got := quickMatchQuery("high")
	want := "+label.game:doudizhu +label.phase:waiting_players +label.open:>=1 +label.tier:high"
	if got != want {
		t.Fatalf("quickMatchQuery = %q, want %q", got, want)
	}
}

func TestDurationToTicks(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 1},
		{100 * time.Millisecond, 1},
		{time.Second, 5},
		{2 * time.Second, 10},
		{1500 * time.Millisecond, 8},
	}
	for _, test := range tests {
		if got := durationToTicks(test.d, tickRate); got != test.want {
			t.Errorf("durationToTicks(%v) = %d, want %d", test.d, got, test.want)
		}
	}
}

func TestDecodeRequest(t *testing.T) {
	msg := send(t, "u", OpPlayCards, map[string]interface{}{
		"cards":  []interface{}{"3S", "3H", "bj"},
		"amount": 2,
	})
	req, err := decodeRequest(msg.GetData())
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	cards, err := cardsField(req)
	if err != nil || len(cards) != 3 || cards[2].Rank != domain.RankBlackJoker {
		t.Fatalf("cardsField = %v, %v", cards, err)
	}
	if amount, err := intField(req, "amount", 0); err != nil || amount != 2 {
		t.Fatalf("intField = %d, %v", amount, err)
	}
	if amount, err := intField(req, "missing", 9); err != nil || amount != 9 {
		t.Fatalf("intField default = %d, %v", amount, err)
	}

	empty, err := decodeRequest(nil)
	if err != nil {
		t.Fatalf("empty request: %v", err)
	}
	if _, err := cardsField(empty); err == nil {
		t.Fatal("cardsField accepted a request without cards")
	}
	if _, err := decodeRequest([]byte{0xff, 0xff}); err == nil {
		t.Fatal("decodeRequest accepted garbage")
	}
}

func TestIntFieldRejectsNonIntegers(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"fraction", 1.9},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"huge", 1e20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &structpb.Struct{Fields: map[string]*structpb.Value{
				"amount": structpb.NewNumberValue(tt.value),
			}}
			if amount, err := intField(req, "amount", 0); err == nil {
				t.Fatalf("intField accepted %v as %d", tt.value, amount)
			}
		})
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{"amount": structpb.NewNumberValue(3)}}
	if amount, err := intField(req, "amount", 0); err != nil || amount != 3 {
		t.Fatalf("intField = %d, %v", amount, err)
	}
}

func TestMatchJoinDealsOnThirdPlayer(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)

	state = joinAll(mh, state, dispatcher, 1, "u0", "u1")
	if state.Game.Phase != domain.PhaseWaiting || state.OpenSeats() != 1 {
		t.Fatalf("phase %s, open %d", state.Game.Phase, state.OpenSeats())
	}
	if state.OwnerID != "u0" {
		t.Fatalf("owner = %q, want u0", state.OwnerID)
	}

	state = joinAll(mh, state, dispatcher, 2, "u2")
	if state.Game.Phase != domain.PhaseBidding {
		t.Fatalf("phase = %s, want bidding", state.Game.Phase)
	}
	if state.Timer == nil || state.Timer.Key.Kind != app.TimerBid {
		t.Fatalf("timer = %+v, want a bid deadline", state.Timer)
	}
	if want := int64(2) + durationToTicks(app.DefaultBidTimeout, tickRate); state.Timer.Deadline != want {
		t.Fatalf("deadline = %d, want %d", state.Timer.Deadline, want)
	}

	for _, u := range []string{"u0", "u1", "u2"} {
		if n := dispatcher.sentTo(OpHandDealt, u); n != 1 {
			t.Errorf("%s received %d private hands", u, n)
		}
		if n := dispatcher.sentTo(OpMatchState, u); n != 1 {
			t.Errorf("%s received %d state views", u, n)
		}
	}
	for _, msg := range dispatcher.sent {
		if msg.opCode == OpHandDealt && len(msg.recipients) != 1 {
			t.Fatalf("hand sent to %v", msg.recipients)
		}
	}

	var label map[string]interface{}
	if err := json.Unmarshal([]byte(dispatcher.labels[len(dispatcher.labels)-1]), &label); err != nil {
		t.Fatalf("label: %v", err)
	}
	if label["phase"] != "bidding" || label["open"] != 0.0 {
		t.Fatalf("label = %v", label)
	}
}

func TestMatchJoinAttempt(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	attempt := func(userID string) bool {
		_, ok, _ := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 0, state, testPresence{userID: userID}, nil)
		return ok
	}

	if !attempt("u0") {
		t.Fatal("empty lobby refused a player")
	}
	state = joinAll(mh, state, dispatcher, 1, "u0", "u1", "u2")
	if attempt("u3") {
		t.Fatal("running game accepted a stranger")
	}
	if !attempt("u1") {
		t.Fatal("seated player could not reconnect")
	}
}

func TestProcessBotsFillsIdleLobby(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state = joinAll(mh, state, dispatcher, 100, "solo")

	fill := state.BotAutoFillTicks
	loop(mh, state, dispatcher, 100+fill-1)
	if state.Game.Phase != domain.PhaseWaiting {
		t.Fatalf("bots added early, phase %s", state.Game.Phase)
	}

	loop(mh, state, dispatcher, 100+fill)
	if state.Game.Phase != domain.PhaseBidding {
		t.Fatalf("phase = %s, want bidding", state.Game.Phase)
	}
	for seat, want := range []string{"solo", "bot-match-1-1", "bot-match-1-2"} {
		p := state.Game.PlayerAt(seat)
		if p == nil || p.UserID != want {
			t.Fatalf("seat %d = %+v, want %s", seat, p, want)
		}
	}
	if n := len(dispatcher.messages(t, OpPlayerJoined)); n != 3 {
		t.Fatalf("player_joined messages = %d, want 3", n)
	}
}

func TestProcessBotsDisabled(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state.BotsEnabled = false
	state = joinAll(mh, state, dispatcher, 0, "solo")
	loop(mh, state, dispatcher, state.BotAutoFillTicks*10)
	if len(state.Game.Players) != 1 {
		t.Fatalf("bots added while disabled: %d players", len(state.Game.Players))
	}
}

// A lone human against two bots, with every move left to the deadlines.
func TestTimersDriveGameToSettlement(t *testing.T) {
	mh, state, dispatcher, economy := newTestMatch(t, nil)
	state = joinAll(mh, state, dispatcher, 0, "human")

	tick := int64(0)
	for ; tick < 200000 && state.Game.Phase != domain.PhaseGameOver; tick++ {
		if loop(mh, state, dispatcher, tick) == nil {
			t.Fatalf("match terminated at tick %d", tick)
		}
	}
	if state.Game.Phase != domain.PhaseGameOver {
		t.Fatalf("game did not finish, phase %s", state.Game.Phase)
	}
	if state.Timer != nil {
		t.Fatalf("finished game still has a deadline: %+v", state.Timer)
	}

	if len(economy.updates) != 1 {
		t.Fatalf("wallet updates = %+v, want one for the human", economy.updates)
	}
	update := economy.updates[0]
	if update.UserID != "human" || update.Amount != state.Game.Report.Deltas["human"] {
		t.Fatalf("update = %+v, report deltas %v", update, state.Game.Report.Deltas)
	}
	if len(dispatcher.messages(t, OpGameEnded)) != 1 {
		t.Fatal("game_ended not broadcast exactly once")
	}

	// The owner asks for a rematch: only connected humans are seated again.
	loop(mh, state, dispatcher, tick, send(t, "human", OpRequestNewGame, nil))
	if state.Game.Phase != domain.PhaseWaiting {
		t.Fatalf("phase after rematch = %s", state.Game.Phase)
	}
	if len(state.Game.Players) != 1 || state.Game.PlayerAt(0).UserID != "human" {
		t.Fatalf("players after rematch = %+v", state.Game.Players)
	}
	if state.Timer == nil || state.Timer.Key.Kind != app.TimerJoin {
		t.Fatalf("rematch timer = %+v", state.Timer)
	}
}

func TestHandleMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		msg      func(t *testing.T) runtime.MatchData
		wantCode float64
	}{
		{
			name: "BidOutOfTurn",
			msg: func(t *testing.T) runtime.MatchData {
				return send(t, "u1", OpBid, map[string]interface{}{"amount": 1})
			},
			wantCode: 409,
		},
		{
			name: "BidTooHigh",
			msg: func(t *testing.T) runtime.MatchData {
				return send(t, "u0", OpBid, map[string]interface{}{"amount": 4})
			},
			wantCode: 400,
		},
		{
			name: "PlayDuringBidding",
			msg: func(t *testing.T) runtime.MatchData {
				return send(t, "u0", OpPlayCards, map[string]interface{}{"cards": []interface{}{"3S"}})
			},
			wantCode: 409,
		},
		{
			name: "StartByNonOwner",
			msg: func(t *testing.T) runtime.MatchData {
				return send(t, "u2", OpStartGame, nil)
			},
			wantCode: 403,
		},
		{
			name: "MalformedCards",
			msg: func(t *testing.T) runtime.MatchData {
				return send(t, "u0", OpPlayCards, map[string]interface{}{"cards": "3S"})
			},
			wantCode: 400,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mh, state, dispatcher, _ := newTestMatch(t, nil)
			state = joinAll(mh, state, dispatcher, 0, "u0", "u1", "u2")
			if state.Game.CurrentTurn != 0 {
				t.Fatalf("bidding starts at seat %d", state.Game.CurrentTurn)
			}
			generation := state.Game.Generation

			msg := test.msg(t)
			loop(mh, state, dispatcher, 1, msg)

			errs := dispatcher.messages(t, OpGameError)
			if len(errs) != 1 {
				t.Fatalf("errors sent = %v", errs)
			}
			if errs[0]["code"] != test.wantCode {
				t.Fatalf("code = %v, want %v (%v)", errs[0]["code"], test.wantCode, errs[0]["message"])
			}
			if dispatcher.sentTo(OpGameError, msg.GetUserId()) != 1 {
				t.Fatal("error was not sent privately to the sender")
			}
			if state.Game.Generation != generation {
				t.Fatal("rejected message changed the game")
			}
		})
	}
}

func TestHandleMessageGuards(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, func(cfg *config.GameConfig) {
		cfg.RateLimit.Calls = 3
		cfg.RateLimit.Window = time.Hour
	})
	state = joinAll(mh, state, dispatcher, 0, "u0")

	// A connected spectator that is not seated.
	state.Presences["watcher"] = testPresence{userID: "watcher"}
	loop(mh, state, dispatcher, 1, send(t, "watcher", OpRequestState, nil))
	if errs := dispatcher.messages(t, OpGameError); len(errs) != 1 || errs[0]["code"] != 403.0 {
		t.Fatalf("non-member errors = %v", errs)
	}

	// Bidding before the game is running.
	loop(mh, state, dispatcher, 2, send(t, "u0", OpBid, map[string]interface{}{"amount": 1}))
	if errs := dispatcher.messages(t, OpGameError); len(errs) != 2 || errs[1]["code"] != 409.0 {
		t.Fatalf("inactive game errors = %v", errs)
	}

	// Budget of three: the bid above used one.
	before := dispatcher.sentTo(OpMatchState, "u0")
	for i := 0; i < 3; i++ {
		loop(mh, state, dispatcher, int64(3+i), send(t, "u0", OpRequestState, nil))
	}
	if got := dispatcher.sentTo(OpMatchState, "u0") - before; got != 2 {
		t.Fatalf("state views served = %d, want 2", got)
	}
	errs := dispatcher.messages(t, OpGameError)
	if last := errs[len(errs)-1]; last["code"] != 429.0 {
		t.Fatalf("last error = %v, want rate limit", last)
	}
}

func TestMatchStateViewIsRedacted(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state = joinAll(mh, state, dispatcher, 0, "u0", "u1", "u2")
	dispatcher.sent = nil

	loop(mh, state, dispatcher, 1, send(t, "u1", OpRequestState, nil))
	views := dispatcher.messages(t, OpMatchState)
	if len(views) != 1 {
		t.Fatalf("views = %d", len(views))
	}
	if views[0]["redacted"] != true || views[0]["owner_id"] != "u0" {
		t.Fatalf("view header = %v / %v", views[0]["redacted"], views[0]["owner_id"])
	}
	raw, _ := json.Marshal(views[0])
	var view app.Snapshot
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("view does not decode as a snapshot: %v", err)
	}
	for _, seat := range view.Seats {
		if seat.UserID == "u1" && len(seat.Hand) != 17 {
			t.Fatalf("viewer hand has %d cards", len(seat.Hand))
		}
		if seat.UserID != "u1" && len(seat.Hand) != 0 {
			t.Fatalf("%s hand leaked", seat.UserID)
		}
	}
}

func TestMatchLeave(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state = joinAll(mh, state, dispatcher, 0, "u0", "u1")

	leave := func(users ...string) interface{} {
		presences := make([]runtime.Presence, len(users))
		for i, u := range users {
			presences[i] = testPresence{userID: u}
		}
		return mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 5, state, presences)
	}

	if leave("u0") == nil {
		t.Fatal("match terminated with a human still connected")
	}
	if len(state.Game.Players) != 1 || state.Game.PlayerAt(0).UserID != "u1" {
		t.Fatalf("lobby after leave = %+v", state.Game.Players)
	}
	if state.OwnerID != "u1" {
		t.Fatalf("owner = %q, want u1", state.OwnerID)
	}
	if len(dispatcher.messages(t, OpPlayerLeft)) != 1 {
		t.Fatal("player_left not broadcast")
	}

	if leave("u1") != nil {
		t.Fatal("empty match kept running")
	}
}

func TestMatchLeaveMidGameKeepsSeat(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state = joinAll(mh, state, dispatcher, 0, "u0", "u1", "u2")

	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, []runtime.Presence{testPresence{userID: "u1"}})
	if state.Game.Phase != domain.PhaseBidding || state.Game.PlayerByID("u1") == nil {
		t.Fatal("dropped player lost their seat mid-game")
	}
	_, ok, _ := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 2, state, testPresence{userID: "u1"}, nil)
	if !ok {
		t.Fatal("dropped player could not come back")
	}
}

func TestMatchSignalAdminCancel(t *testing.T) {
	verifier := guard.NewTokenVerifier("s3cret", "doudizhu")
	token, err := verifier.Issue("admin-2", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		signal adminSignal
		want   string
	}{
		{"Allowlisted", adminSignal{Action: ActionCancel, UserID: "admin-1"}, "ok"},
		{"Token", adminSignal{Action: ActionCancel, UserID: "admin-2", Token: token}, "ok"},
		{"TokenForSomeoneElse", adminSignal{Action: ActionCancel, UserID: "u0", Token: token}, guard.ErrNotAdmin.Error()},
		{"NotAdmin", adminSignal{Action: ActionCancel, UserID: "u0"}, guard.ErrNotAdmin.Error()},
		{"UnknownAction", adminSignal{Action: "explode", UserID: "admin-1"}, "unknown action"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mh, state, dispatcher, _ := newTestMatch(t, func(cfg *config.GameConfig) {
				cfg.Admin.UserIDs = []string{"admin-1"}
				cfg.Admin.TokenSecret = "s3cret"
				cfg.Admin.TokenIssuer = "doudizhu"
			})
			state = joinAll(mh, state, dispatcher, 0, "u0")

			data, _ := json.Marshal(test.signal)
			_, result := mh.MatchSignal(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, string(data))
			if test.want == "ok" {
				if result != "ok" {
					t.Fatalf("result = %q", result)
				}
				if loop(mh, state, dispatcher, 2) != nil {
					t.Fatal("cancelled match kept running")
				}
				if n := len(dispatcher.messages(t, OpGameCancelled)); n != 1 {
					t.Fatalf("game_cancelled broadcasts = %d", n)
				}
				return
			}
			if !strings.HasPrefix(result, test.want) {
				t.Fatalf("result = %q, want %q", result, test.want)
			}
			if loop(mh, state, dispatcher, 2) == nil {
				t.Fatal("refused signal ended the match")
			}
		})
	}
}

func TestJoinTimeoutEndsMatch(t *testing.T) {
	mh, state, dispatcher, _ := newTestMatch(t, nil)
	state.BotsEnabled = false
	state = joinAll(mh, state, dispatcher, 0, "u0")

	deadline := state.Timer.Deadline
	if loop(mh, state, dispatcher, deadline-1) == nil {
		t.Fatal("match ended before the join deadline")
	}
	if loop(mh, state, dispatcher, deadline) != nil {
		t.Fatal("match survived the join deadline")
	}
	cancelled := dispatcher.messages(t, OpGameCancelled)
	if len(cancelled) != 1 || cancelled[0]["reason"] != app.CancelReasonJoinTimeout {
		t.Fatalf("cancel messages = %v", cancelled)
	}
}
