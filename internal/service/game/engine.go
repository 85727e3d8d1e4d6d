package game

import (
	"context"
	"errors"
	"fmt"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/randomness"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"go.uber.org/zap"
)

type GuessResult struct {
	Guess    Guess    `json:"guess"`
	Finished bool     `json:"finished"`
	Outcome  *Outcome `json:"outcome,omitempty"`
}

func (e *Engine) room(id RoomID) (*Room, error) {
	room, ok := e.rooms[id]
	if !ok {
		return nil, reject(ErrRoomNotFound, "房间 %d", id)
	}

	return room, nil
}

func requireCaller(caller Identity) error {
	if caller == "" {
		return reject(ErrNotAuthorized, "缺少调用者身份")
	}

	return nil
}

// arbiterRoom 取出房间并确认调用者是该房间的裁判
func (e *Engine) arbiterRoom(caller Identity, id RoomID) (*Room, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	room, err := e.room(id)
	if err != nil {
		return nil, err
	}

	if room.Arbiter != caller {
		return nil, reject(ErrNotAuthorized, "只有房间裁判可以执行该操作")
	}

	return room, nil
}

func (e *Engine) ClaimGameMaster(caller Identity) error {
	if err := e.directory.Claim(caller); err != nil {
		return err
	}

	zap.L().Info("身份成为裁判", zap.String("identity", string(caller)))

	return nil
}

func ValidateParams(p RoomParams) error {
	if p.MaxPlayers < MIN_PLAYERS || p.MaxPlayers > MAX_PLAYERS {
		return reject(ErrInvalidParameters, "玩家人数需在 %d-%d 之间", MIN_PLAYERS, MAX_PLAYERS)
	}

	if p.MinRange >= p.MaxRange {
		return reject(ErrInvalidParameters, "范围无效")
	}

	if p.MaxGuessesPerPlayer < MIN_GUESSES_PER_PLAYER || p.MaxGuessesPerPlayer > MAX_GUESSES_PER_PLAYER {
		return reject(ErrInvalidParameters, "每人猜测次数需在 %d-%d 之间", MIN_GUESSES_PER_PLAYER, MAX_GUESSES_PER_PLAYER)
	}

	if p.SpeedBonusThreshold < MIN_SPEED_THRESHOLD || p.SpeedBonusThreshold > MAX_SPEED_THRESHOLD {
		return reject(ErrInvalidParameters, "速度奖励阈值需在 %d-%d 之间", MIN_SPEED_THRESHOLD, MAX_SPEED_THRESHOLD)
	}

	if p.CommitPeriod < 0 || p.CommitPeriod > MAX_COMMIT_PERIOD {
		return reject(ErrInvalidParameters, "承诺窗口不能超过 %s", MAX_COMMIT_PERIOD)
	}

	if p.UseCommitReveal && p.CommitPeriod == 0 {
		return reject(ErrInvalidParameters, "承诺模式需要设置承诺窗口")
	}

	return nil
}

func (e *Engine) StartGame(caller Identity, params RoomParams) (RoomInfo, error) {
	if err := requireCaller(caller); err != nil {
		return RoomInfo{}, err
	}

	if !e.directory.IsArbiter(caller) {
		return RoomInfo{}, reject(ErrNotAuthorized, "不是裁判")
	}

	if active, ok := e.directory.ActiveRoom(caller); ok {
		return RoomInfo{}, reject(ErrAlreadyHasActiveRoom, "房间 %d 仍在进行", active)
	}

	if err := ValidateParams(params); err != nil {
		return RoomInfo{}, err
	}

	if !params.UseCommitReveal {
		params.CommitPeriod = 0
	}

	id := e.nextID

	code, err := e.invites.Issue(uint64(id))
	if err != nil {
		return RoomInfo{}, fmt.Errorf("分配邀请码失败: %w", err)
	}

	e.nextID++

	room := newRoom(id, caller, params, code, e.now())
	e.rooms[id] = room

	if err := e.directory.bind(caller, id); err != nil {
		return RoomInfo{}, err
	}

	e.emit(room, EVENT_GAME_CREATED, room.Info())

	zap.L().Info(
		"房间已创建",
		zap.Uint64("room_id", uint64(id)),
		zap.String("arbiter", string(caller)),
		zap.String("invite_code", code),
		zap.Bool("commit_reveal", params.UseCommitReveal),
	)

	return room.Info(), nil
}

func (e *Engine) SetSecretCommitment(caller Identity, roomID RoomID, hash chainhash.Hash) error {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return err
	}

	return e.dispatch(room, setSecretCommitmentAction{hash: hash})
}

// ActivateGame 从等待阶段启动房间。被重置过的房间重新激活时会再次占用裁判的活动名额。
func (e *Engine) ActivateGame(ctx context.Context, caller Identity, roomID RoomID) error {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return err
	}

	if active, ok := e.directory.ActiveRoom(caller); ok && active != roomID {
		return reject(ErrAlreadyHasActiveRoom, "房间 %d 仍在进行", active)
	}

	if err := e.dispatch(room, activateAction{ctx: ctx}); err != nil {
		return err
	}

	return e.directory.bind(caller, roomID)
}

func (e *Engine) JoinGame(caller Identity, roomID RoomID) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	room, err := e.room(roomID)
	if err != nil {
		return err
	}

	return e.dispatch(room, joinAction{player: caller})
}

func (e *Engine) JoinGameWithInvite(caller Identity, code string) (RoomID, error) {
	roomID, ok := e.ResolveInviteCode(code)
	if !ok {
		return 0, ErrInvalidInviteCode
	}

	if err := e.JoinGame(caller, roomID); err != nil {
		return 0, err
	}

	return roomID, nil
}

func (e *Engine) CommitGuess(caller Identity, roomID RoomID, hash chainhash.Hash) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	room, err := e.room(roomID)
	if err != nil {
		return err
	}

	return e.dispatch(room, commitGuessAction{player: caller, hash: hash})
}

func (e *Engine) RevealGuess(caller Identity, roomID RoomID, totalPrediction uint32, secretGuess uint8, salt commitment.Salt) (GuessResult, error) {
	if err := requireCaller(caller); err != nil {
		return GuessResult{}, err
	}

	room, err := e.room(roomID)
	if err != nil {
		return GuessResult{}, err
	}

	err = e.dispatch(room, revealGuessAction{
		player:          caller,
		totalPrediction: totalPrediction,
		secretGuess:     secretGuess,
		salt:            salt,
	})
	if err != nil {
		return GuessResult{}, err
	}

	return guessResult(room, caller), nil
}

func (e *Engine) MakeGuess(caller Identity, roomID RoomID, totalPrediction uint32, secretGuess uint8) (GuessResult, error) {
	if err := requireCaller(caller); err != nil {
		return GuessResult{}, err
	}

	room, err := e.room(roomID)
	if err != nil {
		return GuessResult{}, err
	}

	err = e.dispatch(room, makeGuessAction{
		player:          caller,
		totalPrediction: totalPrediction,
		secretGuess:     secretGuess,
	})
	if err != nil {
		return GuessResult{}, err
	}

	return guessResult(room, caller), nil
}

func guessResult(room *Room, player Identity) GuessResult {
	guesses := room.Guesses[player]

	res := GuessResult{
		Guess:    guesses[len(guesses)-1],
		Finished: room.Status == STATUS_FINISHED,
	}

	if room.Outcome != nil {
		outcome := *room.Outcome
		res.Outcome = &outcome
	}

	return res
}

func (e *Engine) RevealSecret(caller Identity, roomID RoomID, plaintext uint8, salt commitment.Salt) error {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return err
	}

	return e.dispatch(room, revealSecretAction{plaintext: plaintext, salt: salt})
}

func (e *Engine) GiveHint(caller Identity, roomID RoomID) (Hint, error) {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return Hint{}, err
	}

	var hint Hint
	if err := e.dispatch(room, hintAction{hint: &hint}); err != nil {
		return Hint{}, err
	}

	return hint, nil
}

// EndGame 强制结算，即使没有人命中秘密
func (e *Engine) EndGame(caller Identity, roomID RoomID) (*Outcome, error) {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return nil, err
	}

	if err := e.dispatch(room, endGameAction{}); err != nil {
		return nil, err
	}

	return room.Outcome, nil
}

func (e *Engine) ResetGame(caller Identity, roomID RoomID) error {
	room, err := e.arbiterRoom(caller, roomID)
	if err != nil {
		return err
	}

	return e.dispatch(room, resetAction{})
}

// OnRandomnessFulfilled 处理预言机回调。请求未知、已撤销，或房间已重置、结束、清理时
// 返回 ErrStaleRandomnessCallback，且不修改任何房间。
func (e *Engine) OnRandomnessFulfilled(requestID randomness.RequestID, value uint64) (RoomID, error) {
	age, _ := e.requests.Age(requestID)

	id, err := e.requests.Fulfill(requestID, func(roomID uint64) (uint64, bool) {
		room, ok := e.rooms[RoomID(roomID)]
		if !ok || room.Status != STATUS_AWAITING_RANDOMNESS {
			return 0, false
		}

		if room.PendingRequest == nil || *room.PendingRequest != requestID {
			return 0, false
		}

		return room.Generation, true
	})
	if err != nil {
		if errors.Is(err, randomness.ErrStale) {
			zap.L().Warn(
				"丢弃过期的随机数回调",
				zap.String("request_id", string(requestID)),
				zap.Duration("age", age),
			)
			return 0, reject(ErrStaleRandomnessCallback, "请求 %s", requestID)
		}

		return 0, err
	}

	roomID := RoomID(id)

	room, err := e.room(roomID)
	if err != nil {
		return 0, err
	}

	if err := e.dispatch(room, fulfillAction{requestID: requestID, value: value}); err != nil {
		return 0, err
	}

	zap.L().Info(
		"随机数回调完成",
		zap.Uint64("room_id", uint64(roomID)),
		zap.String("request_id", string(requestID)),
		zap.Duration("age", age),
	)

	return roomID, nil
}
