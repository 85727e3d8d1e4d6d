package game

import (
	"time"

	"secret-game-be/internal/service/randomness"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

type Identity string

type RoomID uint64

// 房间状态
// 1. 等待阶段（Waiting）：裁判配置房间，可提交秘密承诺
// 2. 等待随机数（AwaitingRandomness）：已向预言机申请秘密数字，等待回调
// 3. 承诺阶段（CommitPhase）：玩家提交猜测承诺，窗口结束后进入公开阶段
// 4. 进行阶段（Active）：玩家猜测或公开承诺
// 5. 结束阶段（Finished）：已决出结果，终态
type RoomStatus string

const (
	STATUS_WAITING             RoomStatus = "Waiting"
	STATUS_AWAITING_RANDOMNESS RoomStatus = "AwaitingRandomness"
	STATUS_COMMIT_PHASE        RoomStatus = "CommitPhase"
	STATUS_ACTIVE              RoomStatus = "Active"
	STATUS_FINISHED            RoomStatus = "Finished"
)

type WinType string

const (
	WIN_EXACT_SECRET  WinType = "ExactSecret"
	WIN_CLOSEST_GUESS WinType = "ClosestGuess"
	WIN_SPEED_BONUS   WinType = "SpeedBonus"
)

// 参数边界
const (
	MIN_PLAYERS            = 2
	MAX_PLAYERS            = 10
	MIN_GUESSES_PER_PLAYER = 1
	MAX_GUESSES_PER_PLAYER = 10
	MIN_SPEED_THRESHOLD    = 1
	MAX_SPEED_THRESHOLD    = 5
	MAX_HINTS              = 3
	MAX_COMMIT_PERIOD      = time.Hour
	MAX_IDENTITY_LEN       = 128
)

type SecretKind uint8

const (
	SECRET_PLAINTEXT_PENDING SecretKind = iota
	SECRET_PLAINTEXT
	SECRET_COMMITTED
	SECRET_REVEALED
)

func (k SecretKind) String() string {
	switch k {
	case SECRET_PLAINTEXT_PENDING:
		return "PlaintextPending"
	case SECRET_PLAINTEXT:
		return "Plaintext"
	case SECRET_COMMITTED:
		return "Committed"
	case SECRET_REVEALED:
		return "Revealed"
	default:
		return "Unknown"
	}
}

// SecretSlot 是房间秘密数字的四种形态之一。
// 同一代内只能 PlaintextPending -> Plaintext、PlaintextPending -> Committed、Committed -> Revealed。
type SecretSlot struct {
	kind  SecretKind
	value uint8
	hash  chainhash.Hash
}

func PendingSecret() SecretSlot {
	return SecretSlot{kind: SECRET_PLAINTEXT_PENDING}
}

func (s SecretSlot) Kind() SecretKind {
	return s.kind
}

// Value 返回引擎已知的秘密数字，仅 Plaintext 和 Revealed 形态有值
func (s SecretSlot) Value() (uint8, bool) {
	switch s.kind {
	case SECRET_PLAINTEXT, SECRET_REVEALED:
		return s.value, true
	default:
		return 0, false
	}
}

func (s SecretSlot) Commitment() (chainhash.Hash, bool) {
	switch s.kind {
	case SECRET_COMMITTED, SECRET_REVEALED:
		return s.hash, true
	default:
		return chainhash.Hash{}, false
	}
}

func (s SecretSlot) withPlaintext(v uint8) (SecretSlot, bool) {
	if s.kind != SECRET_PLAINTEXT_PENDING {
		return s, false
	}

	return SecretSlot{kind: SECRET_PLAINTEXT, value: v}, true
}

func (s SecretSlot) withCommitment(h chainhash.Hash) (SecretSlot, bool) {
	if s.kind != SECRET_PLAINTEXT_PENDING {
		return s, false
	}

	return SecretSlot{kind: SECRET_COMMITTED, hash: h}, true
}

func (s SecretSlot) withRevealed(v uint8) (SecretSlot, bool) {
	if s.kind != SECRET_COMMITTED {
		return s, false
	}

	return SecretSlot{kind: SECRET_REVEALED, value: v, hash: s.hash}, true
}

type RoomParams struct {
	MaxPlayers          uint8         `json:"max_players"`
	MinRange            uint8         `json:"min_range"`
	MaxRange            uint8         `json:"max_range"`
	MaxGuessesPerPlayer uint8         `json:"max_guesses_per_player"`
	SpeedBonusThreshold uint8         `json:"speed_bonus_threshold"`
	UseCommitReveal     bool          `json:"use_commit_reveal"`
	CommitPeriod        time.Duration `json:"commit_period"`
}

type Guess struct {
	Player          Identity  `json:"player"`
	TotalPrediction uint32    `json:"total_prediction"`
	SecretGuess     uint8     `json:"secret_guess"`
	// 房间内的提交序号，从 1 开始，反映全序中的先后
	Ordinal uint32 `json:"ordinal"`
	// 该玩家的第几次猜测，从 1 开始
	PlayerOrdinal uint8     `json:"player_ordinal"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Commit struct {
	Hash        chainhash.Hash
	Consumed    bool
	CommittedAt time.Time
}

type Outcome struct {
	Winner          Identity  `json:"winner"`
	WinType         WinType   `json:"win_type"`
	ClosestGuesser  *Identity `json:"closest_guesser,omitempty"`
	ClosestDistance *uint8    `json:"closest_distance,omitempty"`
}

type Room struct {
	ID      RoomID
	Arbiter Identity
	Status  RoomStatus
	Params  RoomParams

	CommitPeriodEnd *time.Time
	Secret          SecretSlot
	InviteCode      string

	// 按加入顺序排列
	Players []Identity
	Guesses map[Identity][]Guess
	Commits map[Identity][]Commit

	TotalGuessCount uint32
	Outcome         *Outcome
	HintsGiven      uint8

	StartedAt  time.Time
	FinishedAt *time.Time

	PendingRequest *randomness.RequestID
	// 每次重置递增，用于识别过期的随机数回调
	Generation uint64

	// 所有玩家用完次数时秘密仍未公开，等裁判公开后再结算
	resolutionDeferred bool
}

func newRoom(id RoomID, arbiter Identity, params RoomParams, code string, now time.Time) *Room {
	return &Room{
		ID:         id,
		Arbiter:    arbiter,
		Status:     STATUS_WAITING,
		Params:     params,
		Secret:     PendingSecret(),
		InviteCode: code,
		Players:    make([]Identity, 0, params.MaxPlayers),
		Guesses:    make(map[Identity][]Guess),
		Commits:    make(map[Identity][]Commit),
		StartedAt:  now,
	}
}

func (r *Room) HasPlayer(id Identity) bool {
	for _, p := range r.Players {
		if p == id {
			return true
		}
	}

	return false
}

func (r *Room) IsFull() bool {
	return len(r.Players) >= int(r.Params.MaxPlayers)
}

func (r *Room) guessCapacity() uint32 {
	return uint32(len(r.Players)) * uint32(r.Params.MaxGuessesPerPlayer)
}

// AllGuesses 按提交序号返回房间内全部猜测
func (r *Room) AllGuesses() []Guess {
	all := make([]Guess, 0, r.TotalGuessCount)
	for _, p := range r.Players {
		all = append(all, r.Guesses[p]...)
	}

	sortByOrdinal(all)

	return all
}

// RoomInfo 是房间对外可见的快照，秘密数字只在公开或结束后给出
type RoomInfo struct {
	ID                  RoomID     `json:"room_id"`
	Arbiter             Identity   `json:"arbiter"`
	Status              RoomStatus `json:"status"`
	MaxPlayers          uint8      `json:"max_players"`
	MinRange            uint8      `json:"min_range"`
	MaxRange            uint8      `json:"max_range"`
	MaxGuessesPerPlayer uint8      `json:"max_guesses_per_player"`
	SpeedBonusThreshold uint8      `json:"speed_bonus_threshold"`
	UseCommitReveal     bool       `json:"use_commit_reveal"`
	CommitPeriodSec     int64      `json:"commit_period_sec"`
	CommitPeriodEnd     *time.Time `json:"commit_period_end,omitempty"`
	SecretState         string     `json:"secret_state"`
	Secret              *uint8     `json:"secret,omitempty"`
	SecretCommitment    string     `json:"secret_commitment,omitempty"`
	InviteCode          string     `json:"invite_code"`
	Players             []Identity `json:"players"`
	TotalGuessCount     uint32     `json:"total_guess_count"`
	Outcome             *Outcome   `json:"outcome,omitempty"`
	HintsGiven          uint8      `json:"hints_given"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
	Generation          uint64     `json:"generation"`
	PendingRequestID    string     `json:"pending_request_id,omitempty"`
}

func (r *Room) Info() RoomInfo {
	info := RoomInfo{
		ID:                  r.ID,
		Arbiter:             r.Arbiter,
		Status:              r.Status,
		MaxPlayers:          r.Params.MaxPlayers,
		MinRange:            r.Params.MinRange,
		MaxRange:            r.Params.MaxRange,
		MaxGuessesPerPlayer: r.Params.MaxGuessesPerPlayer,
		SpeedBonusThreshold: r.Params.SpeedBonusThreshold,
		UseCommitReveal:     r.Params.UseCommitReveal,
		CommitPeriodSec:     int64(r.Params.CommitPeriod / time.Second),
		SecretState:         r.Secret.Kind().String(),
		InviteCode:          r.InviteCode,
		Players:             append([]Identity(nil), r.Players...),
		TotalGuessCount:     r.TotalGuessCount,
		HintsGiven:          r.HintsGiven,
		StartedAt:           r.StartedAt,
		Generation:          r.Generation,
	}

	if r.CommitPeriodEnd != nil {
		end := *r.CommitPeriodEnd
		info.CommitPeriodEnd = &end
	}

	if r.FinishedAt != nil {
		at := *r.FinishedAt
		info.FinishedAt = &at
	}

	if r.Outcome != nil {
		outcome := *r.Outcome
		info.Outcome = &outcome
	}

	if h, ok := r.Secret.Commitment(); ok {
		info.SecretCommitment = h.String()
	}

	if v, ok := r.Secret.Value(); ok {
		if r.Secret.Kind() == SECRET_REVEALED || r.Status == STATUS_FINISHED {
			info.Secret = &v
		}
	}

	if r.PendingRequest != nil {
		info.PendingRequestID = string(*r.PendingRequest)
	}

	return info
}
