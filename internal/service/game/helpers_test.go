package game

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"secret-game-be/internal/service/randomness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualOracle struct {
	issued []randomness.RequestID
	err    error
}

func (o *manualOracle) RequestRandomness(context.Context) (randomness.RequestID, error) {
	if o.err != nil {
		return "", o.err
	}

	id := randomness.RequestID(fmt.Sprintf("req-%d", len(o.issued)+1))
	o.issued = append(o.issued, id)

	return id, nil
}

func (o *manualOracle) last() randomness.RequestID {
	return o.issued[len(o.issued)-1]
}

type fixture struct {
	t      *testing.T
	engine *Engine
	oracle *manualOracle
	now    time.Time
	events []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		oracle: &manualOracle{},
		now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	f.engine = NewEngine(
		f.oracle,
		WithClock(func() time.Time { return f.now }),
		WithEventSink(EventSinkFunc(func(ev Event) {
			f.events = append(f.events, ev)
		})),
	)

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func defaultParams() RoomParams {
	return RoomParams{
		MaxPlayers:          3,
		MinRange:            1,
		MaxRange:            10,
		MaxGuessesPerPlayer: 3,
		SpeedBonusThreshold: 2,
	}
}

func commitRevealParams() RoomParams {
	p := defaultParams()
	p.UseCommitReveal = true
	p.CommitPeriod = 5 * time.Minute
	return p
}

func (f *fixture) startRoom(arbiter Identity, params RoomParams) RoomID {
	f.t.Helper()

	if !f.engine.IsArbiter(arbiter) {
		require.NoError(f.t, f.engine.ClaimGameMaster(arbiter))
	}

	info, err := f.engine.StartGame(arbiter, params)
	require.NoError(f.t, err)

	return info.ID
}

// activeRoom 创建并激活一个明文房间，预言机回调使秘密数字等于 secret
func (f *fixture) activeRoom(arbiter Identity, params RoomParams, secret uint8, players ...Identity) RoomID {
	f.t.Helper()

	id := f.startRoom(arbiter, params)

	require.NoError(f.t, f.engine.ActivateGame(context.Background(), arbiter, id))

	_, err := f.engine.OnRandomnessFulfilled(f.oracle.last(), uint64(secret-params.MinRange))
	require.NoError(f.t, err)

	for _, p := range players {
		require.NoError(f.t, f.engine.JoinGame(p, id))
	}

	return id
}

func (f *fixture) info(id RoomID) RoomInfo {
	f.t.Helper()

	info, err := f.engine.RoomInfo(id)
	require.NoError(f.t, err)

	return info
}

func (f *fixture) assertInvariants(id RoomID) {
	f.t.Helper()

	room := f.engine.rooms[id]
	require.NotNil(f.t, room)

	assert.LessOrEqual(f.t, len(room.Players), int(room.Params.MaxPlayers))

	seen := make(map[Identity]bool)
	for _, p := range room.Players {
		assert.False(f.t, seen[p], "duplicate player %s", p)
		seen[p] = true
	}

	var sum uint32
	for player, guesses := range room.Guesses {
		assert.True(f.t, seen[player], "guesses recorded for non-member %s", player)
		assert.LessOrEqual(f.t, len(guesses), int(room.Params.MaxGuessesPerPlayer))

		for _, g := range guesses {
			assert.GreaterOrEqual(f.t, g.SecretGuess, room.Params.MinRange)
			assert.LessOrEqual(f.t, g.SecretGuess, room.Params.MaxRange)
		}

		sum += uint32(len(guesses))
	}
	assert.Equal(f.t, room.TotalGuessCount, sum)

	for player, commits := range room.Commits {
		assert.True(f.t, seen[player], "commits recorded for non-member %s", player)
		assert.LessOrEqual(f.t, len(commits), int(room.Params.MaxGuessesPerPlayer))
	}

	if room.Status == STATUS_FINISHED && room.TotalGuessCount > 0 {
		assert.NotNil(f.t, room.Outcome, "finished room with guesses must have an outcome")
	}

	if code, ok := f.engine.invites.CodeOf(uint64(id)); assert.True(f.t, ok) {
		assert.Equal(f.t, room.InviteCode, code)
	}
}

func (f *fixture) eventTypes() []string {
	types := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		types = append(types, ev.Type)
	}
	return types
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("Failed to marshal: " + err.Error())
	}

	return data
}
