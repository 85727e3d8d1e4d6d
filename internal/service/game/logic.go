package game

import (
	"context"
	"fmt"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/randomness"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"go.uber.org/zap"
)

type StageHandler interface {
	Stage() RoomStatus

	OnEnter(e *Engine, room *Room)
	OnHandle(e *Engine, room *Room, act action) error
	OnExit(e *Engine, room *Room)
}

type action interface {
	name() string
}

type setSecretCommitmentAction struct {
	hash chainhash.Hash
}

type activateAction struct {
	ctx context.Context
}

type joinAction struct {
	player Identity
}

type commitGuessAction struct {
	player Identity
	hash   chainhash.Hash
}

type revealGuessAction struct {
	player          Identity
	totalPrediction uint32
	secretGuess     uint8
	salt            commitment.Salt
}

type makeGuessAction struct {
	player          Identity
	totalPrediction uint32
	secretGuess     uint8
}

type revealSecretAction struct {
	plaintext uint8
	salt      commitment.Salt
}

type hintAction struct {
	hint *Hint
}

type endGameAction struct{}

type resetAction struct{}

type fulfillAction struct {
	requestID randomness.RequestID
	value     uint64
}

func (setSecretCommitmentAction) name() string { return "SetSecretCommitment" }
func (activateAction) name() string            { return "ActivateGame" }
func (joinAction) name() string                { return "JoinGame" }
func (commitGuessAction) name() string         { return "CommitGuess" }
func (revealGuessAction) name() string         { return "RevealGuess" }
func (makeGuessAction) name() string           { return "MakeGuess" }
func (revealSecretAction) name() string        { return "RevealSecret" }
func (hintAction) name() string                { return "GiveHint" }
func (endGameAction) name() string             { return "EndGame" }
func (resetAction) name() string               { return "ResetGame" }
func (fulfillAction) name() string             { return "FulfillRandomness" }

// 等待阶段：裁判配置房间，只处理秘密承诺、激活和重置
type waitStageHandler struct{}

func NewWaitStageHandler() *waitStageHandler {
	return &waitStageHandler{}
}

func (wsh *waitStageHandler) Stage() RoomStatus {
	return STATUS_WAITING
}

func (wsh *waitStageHandler) OnEnter(e *Engine, room *Room) {
}

func (wsh *waitStageHandler) OnHandle(e *Engine, room *Room, act action) error {
	switch act := act.(type) {
	case setSecretCommitmentAction:
		if !room.Params.UseCommitReveal {
			return reject(ErrRoomNotInExpectedState, "房间未启用承诺-公开模式")
		}

		slot, ok := room.Secret.withCommitment(act.hash)
		if !ok {
			return reject(ErrRoomNotInExpectedState, "秘密数字已处于 %s 状态", room.Secret.Kind())
		}

		room.Secret = slot
		e.emit(room, EVENT_SECRET_COMMITTED, nil)

		return nil

	case activateAction:
		if room.Params.UseCommitReveal {
			if room.Secret.Kind() != SECRET_COMMITTED {
				return reject(ErrRoomNotInExpectedState, "承诺模式下需先提交秘密承诺")
			}

			e.switchStage(room, STATUS_COMMIT_PHASE)
			return nil
		}

		id, err := e.requests.RequestSecret(act.ctx, e.oracle, uint64(room.ID), room.Generation)
		if err != nil {
			return err
		}

		room.PendingRequest = &id
		e.emit(room, EVENT_RANDOMNESS_REQUESTED, RandomnessEvent{RequestID: string(id)})

		zap.L().Info(
			"已请求随机秘密",
			zap.Uint64("room_id", uint64(room.ID)),
			zap.String("request_id", string(id)),
			zap.Uint64("generation", room.Generation),
		)

		e.switchStage(room, STATUS_AWAITING_RANDOMNESS)
		return nil

	case resetAction:
		resetRoom(e, room)
		return nil
	}

	return reject(ErrRoomNotInExpectedState, "等待阶段不接受 %s 请求", act.name())
}

func (wsh *waitStageHandler) OnExit(e *Engine, room *Room) {
}

// 等待随机数阶段：只等待预言机回调，可以被重置或强制结束
type awaitStageHandler struct{}

func NewAwaitStageHandler() *awaitStageHandler {
	return &awaitStageHandler{}
}

func (ash *awaitStageHandler) Stage() RoomStatus {
	return STATUS_AWAITING_RANDOMNESS
}

func (ash *awaitStageHandler) OnEnter(e *Engine, room *Room) {
}

func (ash *awaitStageHandler) OnHandle(e *Engine, room *Room, act action) error {
	switch act := act.(type) {
	case fulfillAction:
		secret := secretFromRandom(act.value, room.Params.MinRange, room.Params.MaxRange)

		slot, ok := room.Secret.withPlaintext(secret)
		if !ok {
			return reject(ErrStaleRandomnessCallback, "秘密数字已处于 %s 状态", room.Secret.Kind())
		}

		room.Secret = slot
		room.PendingRequest = nil
		e.emit(room, EVENT_RANDOMNESS_FULFILLED, RandomnessEvent{RequestID: string(act.requestID)})

		e.switchStage(room, STATUS_ACTIVE)
		return nil

	case endGameAction:
		return e.attemptResolution(room, true)

	case resetAction:
		resetRoom(e, room)
		return nil
	}

	return reject(ErrRoomNotInExpectedState, "正在等待随机数，不接受 %s 请求", act.name())
}

// 离开该阶段时撤销尚未完成的随机数请求，之后到达的回调会被判定为过期
func (ash *awaitStageHandler) OnExit(e *Engine, room *Room) {
	cancelPendingRequest(e, room)
}

// 承诺阶段：玩家加入并提交猜测承诺，窗口结束前不允许公开
type commitStageHandler struct{}

func NewCommitStageHandler() *commitStageHandler {
	return &commitStageHandler{}
}

func (csh *commitStageHandler) Stage() RoomStatus {
	return STATUS_COMMIT_PHASE
}

func (csh *commitStageHandler) OnEnter(e *Engine, room *Room) {
}

func (csh *commitStageHandler) OnHandle(e *Engine, room *Room, act action) error {
	switch act := act.(type) {
	case joinAction:
		return onPlayerJoin(e, room, act.player)

	case commitGuessAction:
		return onCommitGuess(e, room, act.player, act.hash)

	case revealGuessAction:
		return reject(ErrRoomNotInExpectedState, "承诺窗口尚未结束")

	case revealSecretAction:
		return reject(ErrRoomNotInExpectedState, "承诺窗口结束前不能公开秘密数字")

	case endGameAction:
		return e.attemptResolution(room, true)

	case resetAction:
		resetRoom(e, room)
		return nil
	}

	return reject(ErrRoomNotInExpectedState, "承诺阶段不接受 %s 请求", act.name())
}

func (csh *commitStageHandler) OnExit(e *Engine, room *Room) {
}

// 进行阶段：玩家猜测（或公开承诺），裁判可以提示、公开秘密、结束或重置
type activeStageHandler struct{}

func NewActiveStageHandler() *activeStageHandler {
	return &activeStageHandler{}
}

func (ash *activeStageHandler) Stage() RoomStatus {
	return STATUS_ACTIVE
}

func (ash *activeStageHandler) OnEnter(e *Engine, room *Room) {
}

func (ash *activeStageHandler) OnHandle(e *Engine, room *Room, act action) error {
	switch act := act.(type) {
	case joinAction:
		return onPlayerJoin(e, room, act.player)

	case makeGuessAction:
		if room.Params.UseCommitReveal {
			return reject(ErrRoomNotInExpectedState, "承诺模式下只能通过公开承诺提交猜测")
		}

		if err := checkGuess(room, act.player, act.secretGuess); err != nil {
			return err
		}

		return acceptGuess(e, room, act.player, act.totalPrediction, act.secretGuess)

	case revealGuessAction:
		if !room.Params.UseCommitReveal {
			return reject(ErrRoomNotInExpectedState, "房间未启用承诺-公开模式")
		}

		return onRevealGuess(e, room, act)

	case commitGuessAction:
		return reject(ErrRoomNotInExpectedState, "承诺窗口已结束")

	case revealSecretAction:
		return onRevealSecret(e, room, act.plaintext, act.salt)

	case hintAction:
		hint, err := onGiveHint(e, room)
		if err != nil {
			return err
		}

		*act.hint = hint
		return nil

	case endGameAction:
		return e.attemptResolution(room, true)

	case resetAction:
		resetRoom(e, room)
		return nil
	}

	return reject(ErrRoomNotInExpectedState, "进行阶段不接受 %s 请求", act.name())
}

func (ash *activeStageHandler) OnExit(e *Engine, room *Room) {
}

// 结束阶段：终态，只允许裁判事后公开秘密
type finishStageHandler struct{}

func NewFinishStageHandler() *finishStageHandler {
	return &finishStageHandler{}
}

func (fsh *finishStageHandler) Stage() RoomStatus {
	return STATUS_FINISHED
}

func (fsh *finishStageHandler) OnEnter(e *Engine, room *Room) {
	now := e.now()
	room.FinishedAt = &now

	// 结束即释放裁判，使其可以开新房间
	e.directory.release(room.Arbiter, room.ID)

	ev := GameEndedEvent{
		Arbiter:         room.Arbiter,
		Outcome:         room.Outcome,
		TotalGuessCount: room.TotalGuessCount,
	}
	if v, ok := room.Secret.Value(); ok {
		ev.Secret = &v
	}

	e.emit(room, EVENT_GAME_ENDED, ev)

	fields := []zap.Field{
		zap.Uint64("room_id", uint64(room.ID)),
		zap.Uint32("total_guesses", room.TotalGuessCount),
	}
	if room.Outcome != nil {
		fields = append(fields,
			zap.String("winner", string(room.Outcome.Winner)),
			zap.String("win_type", string(room.Outcome.WinType)),
		)
	}

	zap.L().Info("游戏结束", fields...)
}

func (fsh *finishStageHandler) OnHandle(e *Engine, room *Room, act action) error {
	if act, ok := act.(revealSecretAction); ok {
		return onRevealSecret(e, room, act.plaintext, act.salt)
	}

	return reject(ErrRoomNotInExpectedState, "游戏已结束")
}

func (fsh *finishStageHandler) OnExit(e *Engine, room *Room) {
}

func onPlayerJoin(e *Engine, room *Room, player Identity) error {
	if player == room.Arbiter {
		return reject(ErrNotAuthorized, "裁判不能作为玩家加入自己的房间")
	}

	if room.HasPlayer(player) {
		return ErrAlreadyJoined
	}

	if room.IsFull() {
		return ErrRoomFull
	}

	room.Players = append(room.Players, player)

	e.emit(room, EVENT_PLAYER_JOINED, PlayerJoinedEvent{
		Player:      player,
		PlayerCount: len(room.Players),
	})

	zap.L().Info(
		"玩家加入房间",
		zap.Uint64("room_id", uint64(room.ID)),
		zap.String("identity", string(player)),
	)

	return nil
}

func onCommitGuess(e *Engine, room *Room, player Identity, hash chainhash.Hash) error {
	if !room.HasPlayer(player) {
		return ErrNotAMember
	}

	if len(room.Commits[player]) >= int(room.Params.MaxGuessesPerPlayer) {
		return ErrCommitLimitExceeded
	}

	now := e.now()
	room.Commits[player] = append(room.Commits[player], Commit{
		Hash:        hash,
		CommittedAt: now,
	})

	// 第一个承诺开启计时
	if room.CommitPeriodEnd == nil {
		end := now.Add(room.Params.CommitPeriod)
		room.CommitPeriodEnd = &end

		e.emit(room, EVENT_COMMIT_PHASE_STARTED, CommitPhaseStartedEvent{CommitPeriodEnd: end})
	}

	e.emit(room, EVENT_GUESS_COMMITTED, GuessCommittedEvent{
		Player:      player,
		CommitCount: len(room.Commits[player]),
	})

	return nil
}

func onRevealGuess(e *Engine, room *Room, act revealGuessAction) error {
	if err := checkGuess(room, act.player, act.secretGuess); err != nil {
		return err
	}

	hash := commitment.Commit(act.totalPrediction, act.secretGuess, act.salt, string(act.player))

	commits := room.Commits[act.player]
	idx := -1
	for i := range commits {
		if !commits[i].Consumed && commits[i].Hash == hash {
			idx = i
			break
		}
	}

	if idx < 0 {
		return ErrCommitMismatch
	}

	commits[idx].Consumed = true

	return acceptGuess(e, room, act.player, act.totalPrediction, act.secretGuess)
}

func checkGuess(room *Room, player Identity, secretGuess uint8) error {
	if !room.HasPlayer(player) {
		return ErrNotAMember
	}

	if secretGuess < room.Params.MinRange || secretGuess > room.Params.MaxRange {
		return reject(ErrGuessOutOfRange, "%d 不在 [%d, %d] 内", secretGuess, room.Params.MinRange, room.Params.MaxRange)
	}

	if len(room.Guesses[player]) >= int(room.Params.MaxGuessesPerPlayer) {
		return ErrGuessLimitExceeded
	}

	return nil
}

// acceptGuess 记录一次已通过校验的猜测，随后检查即时命中和自动结束
func acceptGuess(e *Engine, room *Room, player Identity, totalPrediction uint32, secretGuess uint8) error {
	room.TotalGuessCount++

	guess := Guess{
		Player:          player,
		TotalPrediction: totalPrediction,
		SecretGuess:     secretGuess,
		Ordinal:         room.TotalGuessCount,
		PlayerOrdinal:   uint8(len(room.Guesses[player]) + 1),
		SubmittedAt:     e.now(),
	}

	room.Guesses[player] = append(room.Guesses[player], guess)

	e.emit(room, EVENT_GUESS_MADE, GuessMadeEvent{Guess: guess})

	if secret, ok := room.Secret.Value(); ok && secret == secretGuess {
		return e.attemptResolution(room, false)
	}

	if room.TotalGuessCount >= room.guessCapacity() {
		return e.attemptResolution(room, false)
	}

	return nil
}

// attemptResolution 是结算的唯一入口，即时命中、次数用完和裁判结束都经过这里。
// forced 为 false 时秘密未知会推迟结算，等裁判公开秘密后再完成。
func (e *Engine) attemptResolution(room *Room, forced bool) error {
	if room.Status == STATUS_FINISHED {
		return nil
	}

	guesses := room.AllGuesses()

	var outcome *Outcome
	if len(guesses) > 0 {
		secret, ok := room.Secret.Value()
		if !ok {
			if forced {
				return reject(ErrSecretNotRevealed, "请先公开秘密数字再结束游戏")
			}

			room.resolutionDeferred = true

			zap.L().Info(
				"猜测次数已用完，等待裁判公开秘密后结算",
				zap.Uint64("room_id", uint64(room.ID)),
			)
			return nil
		}

		outcome = ResolveWinner(secret, room.Params.SpeedBonusThreshold, guesses)
	}

	room.Outcome = outcome
	room.resolutionDeferred = false

	e.switchStage(room, STATUS_FINISHED)

	return nil
}

func onRevealSecret(e *Engine, room *Room, plaintext uint8, salt commitment.Salt) error {
	hash, ok := room.Secret.Commitment()
	if !ok || room.Secret.Kind() != SECRET_COMMITTED {
		return reject(ErrRoomNotInExpectedState, "秘密数字处于 %s 状态，无法公开", room.Secret.Kind())
	}

	if !commitment.VerifySecret(hash, plaintext, salt, string(room.Arbiter)) {
		return ErrCommitMismatch
	}

	slot, _ := room.Secret.withRevealed(plaintext)
	room.Secret = slot

	e.emit(room, EVENT_SECRET_REVEALED, SecretRevealedEvent{Secret: plaintext})

	if room.resolutionDeferred {
		return e.attemptResolution(room, false)
	}

	return nil
}

type Hint struct {
	Index uint8  `json:"index"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Low   *uint8 `json:"low,omitempty"`
	High  *uint8 `json:"high,omitempty"`
}

const (
	HINT_PARITY = "Parity"
	HINT_HALF   = "Half"
	HINT_BUCKET = "Bucket"
)

func onGiveHint(e *Engine, room *Room) (Hint, error) {
	if room.HintsGiven >= MAX_HINTS {
		return Hint{}, ErrHintLimitExceeded
	}

	secret, ok := room.Secret.Value()
	if !ok {
		return Hint{}, reject(ErrSecretNotRevealed, "秘密数字对引擎不可见，无法生成提示")
	}

	room.HintsGiven++
	hint := buildHint(room.HintsGiven, secret, room.Params.MinRange, room.Params.MaxRange)

	e.emit(room, EVENT_HINT_GIVEN, hint)

	return hint, nil
}

// buildHint 依次给出奇偶、所在半区、所在十位区间
func buildHint(index uint8, secret, minRange, maxRange uint8) Hint {
	switch index {
	case 1:
		parity := "奇数"
		if secret%2 == 0 {
			parity = "偶数"
		}

		return Hint{
			Index: index,
			Kind:  HINT_PARITY,
			Text:  fmt.Sprintf("秘密数字是%s", parity),
		}

	case 2:
		mid := uint8((uint16(minRange) + uint16(maxRange)) / 2)
		low, high := minRange, mid
		if secret > mid {
			low, high = mid+1, maxRange
		}

		return Hint{
			Index: index,
			Kind:  HINT_HALF,
			Text:  fmt.Sprintf("秘密数字在 %d 到 %d 之间", low, high),
			Low:   &low,
			High:  &high,
		}

	default:
		low := secret / 10 * 10
		high := uint8(min(uint16(low)+9, uint16(maxRange)))
		low = max(low, minRange)

		return Hint{
			Index: index,
			Kind:  HINT_BUCKET,
			Text:  fmt.Sprintf("秘密数字在 %d 到 %d 之间", low, high),
			Low:   &low,
			High:  &high,
		}
	}
}

func cancelPendingRequest(e *Engine, room *Room) {
	if room.PendingRequest == nil {
		return
	}

	e.requests.Cancel(*room.PendingRequest)

	zap.L().Info(
		"撤销随机数请求",
		zap.Uint64("room_id", uint64(room.ID)),
		zap.String("request_id", string(*room.PendingRequest)),
	)

	room.PendingRequest = nil
}

// resetRoom 清空房间所有可变内容并进入新的一代，邀请码保持不变
func resetRoom(e *Engine, room *Room) {
	room.Generation++
	cancelPendingRequest(e, room)

	room.Players = make([]Identity, 0, room.Params.MaxPlayers)
	room.Guesses = make(map[Identity][]Guess)
	room.Commits = make(map[Identity][]Commit)
	room.TotalGuessCount = 0
	room.Outcome = nil
	room.HintsGiven = 0
	room.CommitPeriodEnd = nil
	room.Secret = PendingSecret()
	room.resolutionDeferred = false

	e.directory.release(room.Arbiter, room.ID)

	e.switchStage(room, STATUS_WAITING)

	e.emit(room, EVENT_GAME_RESET, nil)

	zap.L().Info(
		"房间已重置",
		zap.Uint64("room_id", uint64(room.ID)),
		zap.Uint64("generation", room.Generation),
	)
}
