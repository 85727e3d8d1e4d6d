package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secret-game-be/internal/api/http/websocket"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/recover"
	"go.uber.org/zap"
)

// 关闭服务器时等待进行中请求的时间
const SHUTDOWN_TIMEOUT = 5 * time.Second

func NewApp(appState *state.AppState) *iris.Application {
	app := iris.New()
	app.Logger().SetLevel("disable")
	app.UseRouter(recover.New())
	app.UseRouter(accessLog)

	api := app.Party("/api/v1")

	// 查询
	api.Get("/arbiters/{identity}", GetArbiterStatus(appState))
	api.Get("/rooms", ListRooms(appState))
	api.Get("/rooms/next-id", GetNextRoomID(appState))
	api.Get("/rooms/{id:uint64}", GetRoom(appState))
	api.Get("/rooms/{id:uint64}/players", GetPlayers(appState))
	api.Get("/rooms/{id:uint64}/players/{identity}", GetPlayerStatus(appState))
	api.Get("/invites/{code}", ResolveInvite(appState))
	api.Get("/history", GetHistory(appState))
	api.Post("/commitments", ComputeCommitment)

	// 操作，需要身份并受限流约束
	limiter := rateLimit(appState)
	action := func(path string, handler iris.Handler) {
		api.Post(path, requireIdentity, limiter, handler)
	}

	action("/arbiters/claim", ClaimGameMaster(appState))
	action("/rooms", StartGame(appState))
	action("/rooms/{id:uint64}/secret-commitment", SetSecretCommitment(appState))
	action("/rooms/{id:uint64}/activate", ActivateGame(appState))
	action("/rooms/{id:uint64}/join", JoinGame(appState))
	action("/invites/{code}/join", JoinGameWithInvite(appState))
	action("/rooms/{id:uint64}/commits", CommitGuess(appState))
	action("/rooms/{id:uint64}/reveals", RevealGuess(appState))
	action("/rooms/{id:uint64}/guesses", MakeGuess(appState))
	action("/rooms/{id:uint64}/secret/reveal", RevealSecret(appState))
	action("/rooms/{id:uint64}/hints", GiveHint(appState))
	action("/rooms/{id:uint64}/end", EndGame(appState))
	action("/rooms/{id:uint64}/reset", ResetGame(appState))

	// 外部预言机回调
	api.Post("/oracle/fulfill", FulfillRandomness(appState))
	api.Get("/oracle/requests", PendingRequests(appState))

	api.Get("/ws/rooms/{id:uint64}", websocket.RoomEvents(appState))

	return app
}

// RunServer 监听配置的地址直到 ctx 结束
func RunServer(ctx context.Context, appState *state.AppState) error {
	app := NewApp(appState)

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("关闭HTTP服务器失败", zap.Error(err))
		}
	}()

	zap.L().Info("HTTP服务器启动", zap.String("addr", addr))

	err := app.Listen(
		addr,
		iris.WithoutInterruptHandler,
		iris.WithoutStartupLog,
	)
	if err != nil && !errors.Is(err, iris.ErrServerClosed) {
		return fmt.Errorf("HTTP服务器异常退出: %w", err)
	}

	zap.L().Info("HTTP服务器已关闭")

	return nil
}
