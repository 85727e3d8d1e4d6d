package http

import (
	"time"

	"secret-game-be/internal/service/game"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

const (
	IDENTITY_HEADER = "X-Identity"
	IDENTITY_KEY    = "identity"
)

func accessLog(ctx iris.Context) {
	start := time.Now()

	ctx.Next()

	zap.L().Debug(
		"HTTP请求",
		zap.String("method", ctx.Method()),
		zap.String("path", ctx.Path()),
		zap.Int("status", ctx.GetStatusCode()),
		zap.Duration("latency", time.Since(start)),
		zap.String("identity", ctx.GetHeader(IDENTITY_HEADER)),
	)
}

// requireIdentity 从请求头读取调用者身份。身份由上游认证，这里只校验格式。
func requireIdentity(ctx iris.Context) {
	identity := ctx.GetHeader(IDENTITY_HEADER)
	if identity == "" || len(identity) > game.MAX_IDENTITY_LEN {
		writeError(ctx, errMissingIdentity)
		return
	}

	ctx.Values().Set(IDENTITY_KEY, identity)
	ctx.Next()
}

func rateLimit(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		identity := ctx.Values().GetString(IDENTITY_KEY)

		if !appState.Limiter.Allow(identity) {
			zap.L().Debug("请求被限流", zap.String("identity", identity))
			writeError(ctx, errRateLimited)
			return
		}

		ctx.Next()
	}
}

func caller(ctx iris.Context) game.Identity {
	return game.Identity(ctx.Values().GetString(IDENTITY_KEY))
}

func roomID(ctx iris.Context) game.RoomID {
	return game.RoomID(ctx.Params().GetUint64Default("id", 0))
}
