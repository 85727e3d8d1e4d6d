package game

import (
	"time"

	"go.uber.org/zap"
)

// 事件类型
const (
	EVENT_GAME_CREATED         = "GameCreated"
	EVENT_SECRET_COMMITTED     = "SecretCommitted"
	EVENT_STATUS_CHANGED       = "StatusChanged"
	EVENT_RANDOMNESS_REQUESTED = "RandomnessRequested"
	EVENT_RANDOMNESS_FULFILLED = "RandomnessFulfilled"
	EVENT_PLAYER_JOINED        = "PlayerJoined"
	EVENT_GUESS_COMMITTED      = "GuessCommitted"
	EVENT_COMMIT_PHASE_STARTED = "CommitPhaseStarted"
	EVENT_GUESS_MADE           = "GuessMade"
	EVENT_SECRET_REVEALED      = "SecretRevealed"
	EVENT_HINT_GIVEN           = "HintGiven"
	EVENT_GAME_ENDED           = "GameEnded"
	EVENT_GAME_RESET           = "GameReset"
	EVENT_ROOM_PURGED          = "RoomPurged"
)

type Event struct {
	Type       string    `json:"event_type"`
	RoomID     RoomID    `json:"room_id"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
	Data       any       `json:"data,omitempty"`
}

type EventSink interface {
	Publish(ev Event)
}

type EventSinkFunc func(ev Event)

func (f EventSinkFunc) Publish(ev Event) {
	f(ev)
}

type StatusChangedEvent struct {
	From RoomStatus `json:"from"`
	To   RoomStatus `json:"to"`
}

type PlayerJoinedEvent struct {
	Player      Identity `json:"player"`
	PlayerCount int      `json:"player_count"`
}

// 承诺阶段只公开谁提交了承诺，不公开内容
type GuessCommittedEvent struct {
	Player      Identity `json:"player"`
	CommitCount int      `json:"commit_count"`
}

type CommitPhaseStartedEvent struct {
	CommitPeriodEnd time.Time `json:"commit_period_end"`
}

type GuessMadeEvent struct {
	Guess Guess `json:"guess"`
}

type SecretRevealedEvent struct {
	Secret uint8 `json:"secret"`
}

type GameEndedEvent struct {
	Arbiter         Identity `json:"arbiter"`
	Outcome         *Outcome `json:"outcome,omitempty"`
	Secret          *uint8   `json:"secret,omitempty"`
	TotalGuessCount uint32   `json:"total_guess_count"`
}

type RandomnessEvent struct {
	RequestID string `json:"request_id"`
}

func (e *Engine) emit(room *Room, evType string, data any) {
	ev := Event{
		Type:       evType,
		RoomID:     room.ID,
		Generation: room.Generation,
		At:         e.now(),
		Data:       data,
	}

	zap.L().Debug(
		"房间事件",
		zap.Uint64("room_id", uint64(room.ID)),
		zap.String("event_type", evType),
	)

	if e.sink != nil {
		e.sink.Publish(ev)
	}
}
