package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"
	"secret-game-be/internal/service/randomness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryHistory struct {
	mu      sync.Mutex
	results []dto.GameResult
}

func (m *memoryHistory) SaveResult(_ context.Context, result dto.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, result)
	return nil
}

func (m *memoryHistory) RecentResults(_ context.Context, limit int) ([]dto.GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := slices.Clone(m.results)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.results)
}

// startService 启动服务，测试结束时停止并等待退出
func startService(t *testing.T, oracle randomness.Oracle, history HistoryStore, opts Options) *GameService {
	t.Helper()

	svc := NewGameService(oracle, history, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return svc
}

func testParams() game.RoomParams {
	return game.RoomParams{
		MaxPlayers:          5,
		MinRange:            1,
		MaxRange:            100,
		MaxGuessesPerPlayer: 3,
		SpeedBonusThreshold: 1,
	}
}

// activeRoom 通过外部预言机把房间推进到进行阶段，秘密数字为 secret
func activeRoom(t *testing.T, svc *GameService, oracle *randomness.ExternalOracle, arbiter game.Identity, secret uint8) game.RoomID {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, svc.ClaimGameMaster(ctx, arbiter))

	info, err := svc.StartGame(ctx, arbiter, testParams())
	require.NoError(t, err)

	activated, err := svc.ActivateGame(ctx, arbiter, info.ID)
	require.NoError(t, err)
	require.Equal(t, game.STATUS_AWAITING_RANDOMNESS, activated.Status)
	require.Contains(t, oracle.Outstanding(), randomness.RequestID(activated.PendingRequestID))

	roomID, err := svc.FulfillRandomness(ctx, randomness.RequestID(activated.PendingRequestID), uint64(secret-1))
	require.NoError(t, err)
	require.Equal(t, info.ID, roomID)

	return info.ID
}

func TestGameServiceFullRound(t *testing.T) {
	ctx := context.Background()
	oracle := randomness.NewExternalOracle()
	history := &memoryHistory{}
	svc := startService(t, oracle, history, Options{})

	roomID := activeRoom(t, svc, oracle, "arbiter", 42)
	assert.Empty(t, oracle.Outstanding())

	events, unsubscribe := svc.Subscribe(roomID)
	defer unsubscribe()

	require.NoError(t, svc.JoinGame(ctx, "alice", roomID))
	require.NoError(t, svc.JoinGame(ctx, "bob", roomID))

	_, err := svc.MakeGuess(ctx, "alice", roomID, 10, 40)
	require.NoError(t, err)

	res, err := svc.MakeGuess(ctx, "bob", roomID, 11, 42)
	require.NoError(t, err)
	require.True(t, res.Finished)
	assert.Equal(t, game.WIN_SPEED_BONUS, res.Outcome.WinType)

	var types []string
	for len(types) < 6 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}

	assert.Equal(t, []string{
		game.EVENT_PLAYER_JOINED,
		game.EVENT_PLAYER_JOINED,
		game.EVENT_GUESS_MADE,
		game.EVENT_GUESS_MADE,
		game.EVENT_GAME_ENDED,
		game.EVENT_STATUS_CHANGED,
	}, types)

	require.Eventually(t, func() bool { return history.len() == 1 }, time.Second, 10*time.Millisecond)

	results, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(roomID), results[0].RoomID)
	assert.Equal(t, "bob", *results[0].Winner)
	assert.Equal(t, uint8(42), *results[0].Secret)
	assert.Equal(t, uint32(2), results[0].TotalGuessCount)

	status, err := svc.ArbiterStatus(ctx, "arbiter")
	require.NoError(t, err)
	assert.True(t, status.IsArbiter)
	assert.False(t, status.HasActiveRoom)
}

func TestGameServiceSerializesConcurrentGuesses(t *testing.T) {
	ctx := context.Background()
	oracle := randomness.NewExternalOracle()
	svc := startService(t, oracle, nil, Options{})

	roomID := activeRoom(t, svc, oracle, "arbiter", 100)

	players := []game.Identity{"p0", "p1", "p2", "p3", "p4"}
	for _, p := range players {
		require.NoError(t, svc.JoinGame(ctx, p, roomID))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(players)*3)

	for i, p := range players {
		wg.Add(1)
		go func(i int, p game.Identity) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				if _, err := svc.MakeGuess(ctx, p, roomID, 0, uint8(i*10+j+1)); err != nil {
					errs <- err
				}
			}
		}(i, p)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	info, err := svc.RoomInfo(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, game.STATUS_FINISHED, info.Status)
	assert.Equal(t, uint32(15), info.TotalGuessCount)

	ordinals := make([]uint32, 0, 15)
	for _, p := range players {
		status, err := svc.PlayerStatus(ctx, roomID, p)
		require.NoError(t, err)
		assert.Equal(t, 3, status.GuessCount)

		for k, g := range status.Guesses {
			assert.Equal(t, uint8(k+1), g.PlayerOrdinal)
			ordinals = append(ordinals, g.Ordinal)
		}
	}

	slices.Sort(ordinals)
	for i, o := range ordinals {
		assert.Equal(t, uint32(i+1), o)
	}

	// 最接近 100 的是 p4 的 43
	require.NotNil(t, info.Outcome)
	assert.Equal(t, game.Identity("p4"), info.Outcome.Winner)
}

func TestGameServiceStaleFulfillment(t *testing.T) {
	ctx := context.Background()
	oracle := randomness.NewExternalOracle()
	svc := startService(t, oracle, nil, Options{})

	require.NoError(t, svc.ClaimGameMaster(ctx, "arbiter"))
	info, err := svc.StartGame(ctx, "arbiter", testParams())
	require.NoError(t, err)

	activated, err := svc.ActivateGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)
	requestID := randomness.RequestID(activated.PendingRequestID)

	reset, err := svc.ResetGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)

	_, err = svc.FulfillRandomness(ctx, requestID, 7)
	assert.ErrorIs(t, err, game.ErrStaleRandomnessCallback)
	assert.NotContains(t, oracle.Outstanding(), requestID)

	after, err := svc.RoomInfo(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, reset, after)
}

func TestGameServiceLocalOracle(t *testing.T) {
	ctx := context.Background()
	oracle := randomness.NewLocalOracle(time.Millisecond, 5*time.Millisecond)
	defer oracle.Close()

	svc := startService(t, oracle, nil, Options{})
	oracle.SetCallback(svc.HandleFulfillment)

	require.NoError(t, svc.ClaimGameMaster(ctx, "arbiter"))
	info, err := svc.StartGame(ctx, "arbiter", testParams())
	require.NoError(t, err)

	_, err = svc.ActivateGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := svc.RoomInfo(ctx, info.ID)
		return err == nil && current.Status == game.STATUS_ACTIVE
	}, 2*time.Second, 5*time.Millisecond)

	_, err = svc.GiveHint(ctx, "arbiter", info.ID)
	assert.NoError(t, err)
}

func TestGameServiceCommitTickerOpensReveals(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, randomness.NewExternalOracle(), nil, Options{CommitTick: 5 * time.Millisecond})

	params := testParams()
	params.UseCommitReveal = true
	params.CommitPeriod = 20 * time.Millisecond

	require.NoError(t, svc.ClaimGameMaster(ctx, "arbiter"))
	info, err := svc.StartGame(ctx, "arbiter", params)
	require.NoError(t, err)

	secretSalt, err := commitment.NewSalt()
	require.NoError(t, err)
	require.NoError(t, svc.SetSecretCommitment(ctx, "arbiter", info.ID, commitment.CommitSecret(9, secretSalt, "arbiter")))

	_, err = svc.ActivateGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)
	require.NoError(t, svc.JoinGame(ctx, "alice", info.ID))

	salt, err := commitment.NewSalt()
	require.NoError(t, err)
	require.NoError(t, svc.CommitGuess(ctx, "alice", info.ID, commitment.Commit(5, 9, salt, "alice")))

	require.Eventually(t, func() bool {
		current, err := svc.RoomInfo(ctx, info.ID)
		return err == nil && current.Status == game.STATUS_ACTIVE
	}, 2*time.Second, 5*time.Millisecond)

	res, err := svc.RevealGuess(ctx, "alice", info.ID, 5, 9, salt)
	require.NoError(t, err)
	assert.False(t, res.Finished)

	revealed, err := svc.RevealSecret(ctx, "arbiter", info.ID, 9, secretSalt)
	require.NoError(t, err)
	require.NotNil(t, revealed.Secret)

	end, err := svc.EndGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)
	require.NotNil(t, end.Outcome)
	assert.Equal(t, game.Identity("alice"), end.Outcome.Winner)
	assert.Equal(t, game.WIN_SPEED_BONUS, end.Outcome.WinType)
}

func TestGameServicePurgeClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	oracle := randomness.NewExternalOracle()
	svc := startService(t, oracle, nil, Options{
		PurgeInterval: 10 * time.Millisecond,
		Retention:     time.Nanosecond,
	})

	roomID := activeRoom(t, svc, oracle, "arbiter", 5)
	info, err := svc.RoomInfo(ctx, roomID)
	require.NoError(t, err)

	events, unsubscribe := svc.Subscribe(roomID)
	defer unsubscribe()

	_, err = svc.EndGame(ctx, "arbiter", roomID)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	var last game.Event
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			last = ev
		case <-deadline:
			t.Fatal("subscriber channel was not closed after purge")
		}
	}

	assert.Equal(t, game.EVENT_ROOM_PURGED, last.Type)

	_, err = svc.ResolveInviteCode(ctx, info.InviteCode)
	assert.ErrorIs(t, err, game.ErrInvalidInviteCode)

	_, err = svc.RoomInfo(ctx, roomID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestGameServiceRejectsAfterShutdown(t *testing.T) {
	svc := NewGameService(randomness.NewExternalOracle(), nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.NoError(t, svc.ClaimGameMaster(context.Background(), "arbiter"))

	cancel()
	require.NoError(t, <-done)

	err := svc.ClaimGameMaster(context.Background(), "other")
	assert.ErrorIs(t, err, ErrServiceClosed)

	events, _ := svc.Subscribe(1)
	_, ok := <-events
	assert.False(t, ok)

	_, err = svc.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestGameServiceSubmitWaitsForAcceptedRequest(t *testing.T) {
	svc := startService(t, randomness.NewExternalOracle(), nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	applied := false
	err := svc.submit(ctx, func(e *game.Engine) {
		// 调用方的 ctx 在执行期间过期
		<-ctx.Done()
		applied = e.ClaimGameMaster("arbiter") == nil
	})
	require.NoError(t, err)
	assert.True(t, applied)

	err = svc.ClaimGameMaster(context.Background(), "arbiter")
	assert.ErrorIs(t, err, game.ErrAlreadyArbiter)
}

func TestHandleRequest(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, randomness.NewExternalOracle(), nil, Options{})

	wrap := func(reqType string, data any) game.RequestWrapper {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		return game.RequestWrapper{ReqType: reqType, RequestID: "r-" + reqType, Data: raw}
	}

	resp := svc.HandleRequest(ctx, "arbiter", game.RequestWrapper{ReqType: game.REQ_CLAIM_GAME_MASTER})
	require.Equal(t, game.RESP_RESULT, resp.RespType, resp.ErrMsg)
	assert.True(t, resp.Data.(dto.ArbiterStatusResponse).IsArbiter)

	resp = svc.HandleRequest(ctx, "arbiter", wrap(game.REQ_START_GAME, game.StartGameRequest{
		MaxPlayers:          2,
		MinRange:            1,
		MaxRange:            10,
		MaxGuessesPerPlayer: 1,
		SpeedBonusThreshold: 1,
	}))
	require.Equal(t, game.RESP_RESULT, resp.RespType, resp.ErrMsg)
	assert.Equal(t, "r-"+game.REQ_START_GAME, resp.RequestID)
	roomID := resp.Data.(game.RoomInfo).ID

	resp = svc.HandleRequest(ctx, "arbiter", wrap(game.REQ_SET_SECRET_COMMITMENT, game.SecretCommitmentRequest{
		RoomID:     roomID,
		Commitment: "not-a-hash",
	}))
	assert.Equal(t, game.RESP_ERROR, resp.RespType)
	assert.Equal(t, game.CODE_INVALID_REQUEST, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "arbiter", game.RequestWrapper{ReqType: game.REQ_ACTIVATE_GAME, Data: json.RawMessage(`{"room_id":"one"}`)})
	assert.Equal(t, game.CODE_INVALID_REQUEST, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "arbiter", game.RequestWrapper{ReqType: "Dance"})
	assert.Equal(t, game.CODE_INVALID_REQUEST, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "mallory", wrap(game.REQ_ACTIVATE_GAME, game.RoomRequest{RoomID: roomID}))
	assert.Equal(t, game.CODE_NOT_AUTHORIZED, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "alice", wrap(game.REQ_JOIN_GAME, game.RoomRequest{RoomID: roomID}))
	assert.Equal(t, game.CODE_ROOM_NOT_IN_EXPECTED_STATE, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "alice", wrap(game.REQ_REVEAL_GUESS, game.RevealGuessRequest{
		RoomID: roomID,
		Salt:   "zz",
	}))
	assert.Equal(t, game.CODE_INVALID_REQUEST, resp.ErrCode)

	resp = svc.HandleRequest(ctx, "arbiter", wrap(game.REQ_ACTIVATE_GAME, game.RoomRequest{RoomID: roomID}))
	require.Equal(t, game.RESP_RESULT, resp.RespType, resp.ErrMsg)
	assert.Equal(t, game.STATUS_AWAITING_RANDOMNESS, resp.Data.(game.RoomInfo).Status)

	resp = svc.HandleRequest(ctx, "arbiter", wrap(game.REQ_END_GAME, game.RoomRequest{RoomID: roomID}))
	require.Equal(t, game.RESP_RESULT, resp.RespType, resp.ErrMsg)
	assert.Nil(t, resp.Data.(game.EndGameResponse).Outcome)

	resp = svc.HandleRequest(ctx, "arbiter", wrap(game.REQ_RESET_GAME, game.RoomRequest{RoomID: roomID}))
	assert.Equal(t, game.CODE_ROOM_NOT_IN_EXPECTED_STATE, resp.ErrCode, resp.ErrMsg)
}

func TestEventHubDropsForSlowSubscribers(t *testing.T) {
	hub := newEventHub()

	events, unsubscribe := hub.subscribe(1)
	assert.Equal(t, 1, hub.count(1))

	for i := 0; i < SUBSCRIBER_BUFFER+5; i++ {
		hub.publish(game.Event{Type: fmt.Sprintf("e%d", i), RoomID: 1})
	}
	hub.publish(game.Event{Type: "other", RoomID: 2})

	assert.Len(t, events, SUBSCRIBER_BUFFER)
	assert.Equal(t, "e0", (<-events).Type)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.count(1))
}
