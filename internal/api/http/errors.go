package http

import (
	"context"
	"errors"
	"fmt"

	"secret-game-be/internal/service"
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// 服务层之外的错误码
const (
	CODE_SERVICE_UNAVAILABLE = "SERVICE_UNAVAILABLE"
	CODE_HISTORY_DISABLED    = "HISTORY_DISABLED"
	CODE_RATE_LIMITED        = "RATE_LIMITED"
	CODE_UNAUTHENTICATED     = "UNAUTHENTICATED"
	CODE_ORACLE_DISABLED     = "ORACLE_DISABLED"
)

type httpError struct {
	status int
	code   string
	msg    string
}

func (e *httpError) Error() string {
	return e.msg
}

var (
	errMissingIdentity = &httpError{iris.StatusUnauthorized, CODE_UNAUTHENTICATED, "缺少身份请求头 " + IDENTITY_HEADER}
	errRateLimited     = &httpError{iris.StatusTooManyRequests, CODE_RATE_LIMITED, "请求过于频繁"}
	errBadToken        = &httpError{iris.StatusForbidden, string(game.CODE_NOT_AUTHORIZED), "回调令牌无效"}
	errOracleDisabled  = &httpError{iris.StatusNotFound, CODE_ORACLE_DISABLED, "未启用外部预言机"}
)

func statusOf(code game.ErrorCode) int {
	switch code {
	case game.CODE_INVALID_PARAMETERS,
		game.CODE_GUESS_OUT_OF_RANGE,
		game.CODE_INVALID_REQUEST:
		return iris.StatusBadRequest

	case game.CODE_NOT_AUTHORIZED,
		game.CODE_NOT_A_MEMBER:
		return iris.StatusForbidden

	case game.CODE_ROOM_NOT_FOUND,
		game.CODE_INVALID_INVITE_CODE:
		return iris.StatusNotFound

	case game.CODE_COMMIT_MISMATCH:
		return iris.StatusUnprocessableEntity

	case game.CODE_ALREADY_HAS_ACTIVE_ROOM,
		game.CODE_ROOM_NOT_IN_EXPECTED_STATE,
		game.CODE_ROOM_FULL,
		game.CODE_ALREADY_JOINED,
		game.CODE_ALREADY_ARBITER,
		game.CODE_GUESS_LIMIT_EXCEEDED,
		game.CODE_COMMIT_LIMIT_EXCEEDED,
		game.CODE_HINT_LIMIT_EXCEEDED,
		game.CODE_SECRET_NOT_REVEALED,
		game.CODE_STALE_RANDOMNESS_CALLBACK:
		return iris.StatusConflict
	}

	return iris.StatusInternalServerError
}

func writeError(ctx iris.Context, err error) {
	var (
		he     *httpError
		status int
		code   string
	)

	switch {
	case errors.As(err, &he):
		status, code = he.status, he.code

	case errors.Is(err, service.ErrServiceBusy),
		errors.Is(err, service.ErrServiceClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status, code = iris.StatusServiceUnavailable, CODE_SERVICE_UNAVAILABLE

	case errors.Is(err, service.ErrHistoryDisabled):
		status, code = iris.StatusNotFound, CODE_HISTORY_DISABLED

	default:
		c := game.CodeOf(err)
		status, code = statusOf(c), string(c)
	}

	if status >= iris.StatusInternalServerError {
		zap.L().Error(
			"处理请求失败",
			zap.String("path", ctx.Path()),
			zap.Error(err),
		)
	}

	ctx.StopWithJSON(status, dto.ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func invalidBody(err error) error {
	return fmt.Errorf("%w：%v", game.ErrInvalidRequest, err)
}

// readJSON 解析请求体，失败时直接写出 400
func readJSON(ctx iris.Context, v any) bool {
	if err := ctx.ReadJSON(v); err != nil {
		writeError(ctx, invalidBody(err))
		return false
	}

	return true
}

func respond(ctx iris.Context, status int, data any, err error) {
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.StatusCode(status)
	if err := ctx.JSON(data); err != nil {
		zap.L().Error("写入响应失败", zap.Error(err))
	}
}
