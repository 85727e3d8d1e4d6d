package game

import (
	"time"
)

// 客户端可发送的请求类型
const (
	REQ_CLAIM_GAME_MASTER     = "ClaimGameMaster"
	REQ_START_GAME            = "StartGame"
	REQ_SET_SECRET_COMMITMENT = "SetSecretCommitment"
	REQ_ACTIVATE_GAME         = "ActivateGame"
	REQ_JOIN_GAME             = "JoinGame"
	REQ_JOIN_WITH_INVITE      = "JoinGameWithInvite"
	REQ_COMMIT_GUESS          = "CommitGuess"
	REQ_REVEAL_GUESS          = "RevealGuess"
	REQ_MAKE_GUESS            = "MakeGuess"
	REQ_REVEAL_SECRET         = "RevealSecret"
	REQ_GIVE_HINT             = "GiveHint"
	REQ_END_GAME              = "EndGame"
	REQ_RESET_GAME            = "ResetGame"
)

type StartGameRequest struct {
	MaxPlayers          uint8 `json:"max_players"`
	MinRange            uint8 `json:"min_range"`
	MaxRange            uint8 `json:"max_range"`
	MaxGuessesPerPlayer uint8 `json:"max_guesses_per_player"`
	SpeedBonusThreshold uint8 `json:"speed_bonus_threshold"`
	UseCommitReveal     bool  `json:"use_commit_reveal"`
	CommitPeriodSec     int64 `json:"commit_period_sec"`
}

func (r StartGameRequest) Params() RoomParams {
	return RoomParams{
		MaxPlayers:          r.MaxPlayers,
		MinRange:            r.MinRange,
		MaxRange:            r.MaxRange,
		MaxGuessesPerPlayer: r.MaxGuessesPerPlayer,
		SpeedBonusThreshold: r.SpeedBonusThreshold,
		UseCommitReveal:     r.UseCommitReveal,
		CommitPeriod:        r.commitPeriod(),
	}
}

// 先按秒检查范围，超出范围的值映射为非法窗口，避免乘法溢出后落回合法区间
func (r StartGameRequest) commitPeriod() time.Duration {
	switch {
	case r.CommitPeriodSec < 0:
		return -time.Second
	case r.CommitPeriodSec > int64(MAX_COMMIT_PERIOD/time.Second):
		return MAX_COMMIT_PERIOD + time.Second
	}

	return time.Duration(r.CommitPeriodSec) * time.Second
}

// 激活、加入、提示、结束、重置只需要房间 ID
type RoomRequest struct {
	RoomID RoomID `json:"room_id"`
}

type JoinWithInviteRequest struct {
	InviteCode string `json:"invite_code"`
}

// Commitment 为 64 位十六进制哈希
type SecretCommitmentRequest struct {
	RoomID     RoomID `json:"room_id"`
	Commitment string `json:"commitment"`
}

type CommitGuessRequest struct {
	RoomID     RoomID `json:"room_id"`
	Commitment string `json:"commitment"`
}

type MakeGuessRequest struct {
	RoomID          RoomID `json:"room_id"`
	TotalPrediction uint32 `json:"total_prediction"`
	SecretGuess     uint8  `json:"secret_guess"`
}

type RevealGuessRequest struct {
	RoomID          RoomID `json:"room_id"`
	TotalPrediction uint32 `json:"total_prediction"`
	SecretGuess     uint8  `json:"secret_guess"`
	Salt            string `json:"salt"`
}

type RevealSecretRequest struct {
	RoomID RoomID `json:"room_id"`
	Secret uint8  `json:"secret"`
	Salt   string `json:"salt"`
}

type JoinGameResponse struct {
	RoomID RoomID   `json:"room_id"`
	Player Identity `json:"player"`
}

type EndGameResponse struct {
	RoomID  RoomID   `json:"room_id"`
	Outcome *Outcome `json:"outcome,omitempty"`
}
