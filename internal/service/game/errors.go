package game

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CODE_NOT_AUTHORIZED             ErrorCode = "NOT_AUTHORIZED"
	CODE_INVALID_PARAMETERS         ErrorCode = "INVALID_PARAMETERS"
	CODE_ALREADY_HAS_ACTIVE_ROOM    ErrorCode = "ALREADY_HAS_ACTIVE_ROOM"
	CODE_ROOM_NOT_IN_EXPECTED_STATE ErrorCode = "ROOM_NOT_IN_EXPECTED_STATE"
	CODE_ROOM_FULL                  ErrorCode = "ROOM_FULL"
	CODE_ALREADY_JOINED             ErrorCode = "ALREADY_JOINED"
	CODE_NOT_A_MEMBER               ErrorCode = "NOT_A_MEMBER"
	CODE_GUESS_LIMIT_EXCEEDED       ErrorCode = "GUESS_LIMIT_EXCEEDED"
	CODE_COMMIT_LIMIT_EXCEEDED      ErrorCode = "COMMIT_LIMIT_EXCEEDED"
	CODE_GUESS_OUT_OF_RANGE         ErrorCode = "GUESS_OUT_OF_RANGE"
	CODE_INVALID_INVITE_CODE        ErrorCode = "INVALID_INVITE_CODE"
	CODE_COMMIT_MISMATCH            ErrorCode = "COMMIT_MISMATCH"
	CODE_STALE_RANDOMNESS_CALLBACK  ErrorCode = "STALE_RANDOMNESS_CALLBACK"
	CODE_HINT_LIMIT_EXCEEDED        ErrorCode = "HINT_LIMIT_EXCEEDED"

	CODE_ROOM_NOT_FOUND      ErrorCode = "ROOM_NOT_FOUND"
	CODE_ALREADY_ARBITER     ErrorCode = "ALREADY_ARBITER"
	CODE_SECRET_NOT_REVEALED ErrorCode = "SECRET_NOT_REVEALED"
	CODE_INVALID_REQUEST     ErrorCode = "INVALID_REQUEST"
	CODE_INTERNAL            ErrorCode = "INTERNAL"
)

// GameError 是被拒绝的操作，Code 用于区分原因。
// 同一 Code 的错误通过 errors.Is 相互匹配，与附带的细节无关。
type GameError struct {
	Code ErrorCode
	Msg  string
}

func (e *GameError) Error() string {
	return e.Msg
}

func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	return ok && t.Code == e.Code
}

var (
	ErrNotAuthorized           = &GameError{CODE_NOT_AUTHORIZED, "无权执行该操作"}
	ErrInvalidParameters       = &GameError{CODE_INVALID_PARAMETERS, "房间参数无效"}
	ErrAlreadyHasActiveRoom    = &GameError{CODE_ALREADY_HAS_ACTIVE_ROOM, "裁判已有进行中的房间"}
	ErrRoomNotInExpectedState  = &GameError{CODE_ROOM_NOT_IN_EXPECTED_STATE, "房间当前状态不允许该操作"}
	ErrRoomFull                = &GameError{CODE_ROOM_FULL, "房间已满"}
	ErrAlreadyJoined           = &GameError{CODE_ALREADY_JOINED, "已加入该房间"}
	ErrNotAMember              = &GameError{CODE_NOT_A_MEMBER, "必须先加入房间"}
	ErrGuessLimitExceeded      = &GameError{CODE_GUESS_LIMIT_EXCEEDED, "猜测次数已用完"}
	ErrCommitLimitExceeded     = &GameError{CODE_COMMIT_LIMIT_EXCEEDED, "承诺次数已用完"}
	ErrGuessOutOfRange         = &GameError{CODE_GUESS_OUT_OF_RANGE, "猜测超出范围"}
	ErrInvalidInviteCode       = &GameError{CODE_INVALID_INVITE_CODE, "邀请码无效"}
	ErrCommitMismatch          = &GameError{CODE_COMMIT_MISMATCH, "公开内容与承诺不符"}
	ErrStaleRandomnessCallback = &GameError{CODE_STALE_RANDOMNESS_CALLBACK, "随机数回调已过期"}
	ErrHintLimitExceeded       = &GameError{CODE_HINT_LIMIT_EXCEEDED, "提示次数已用完"}
	ErrRoomNotFound            = &GameError{CODE_ROOM_NOT_FOUND, "房间不存在"}
	ErrAlreadyArbiter          = &GameError{CODE_ALREADY_ARBITER, "已经是裁判"}
	ErrSecretNotRevealed       = &GameError{CODE_SECRET_NOT_REVEALED, "秘密数字尚未公开"}
	ErrInvalidRequest          = &GameError{CODE_INVALID_REQUEST, "请求格式错误"}
)

// reject 在基础错误上附加细节，保留错误码
func reject(base *GameError, format string, args ...any) error {
	return &GameError{
		Code: base.Code,
		Msg:  fmt.Sprintf("%s：%s", base.Msg, fmt.Sprintf(format, args...)),
	}
}

// CodeOf 提取错误码，非游戏错误返回 CODE_INTERNAL
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}

	return CODE_INTERNAL
}
