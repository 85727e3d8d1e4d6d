package websocket

import (
	"encoding/json"
	"time"

	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"
	"secret-game-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

const (
	IDENTITY_HEADER = "X-Identity"

	RATE_LIMITED game.ErrorCode = "RATE_LIMITED"
)

// RoomEvents 推送房间事件，并把客户端发来的请求交给游戏服务处理
func RoomEvents(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		svc := appState.GameSvc
		roomID := game.RoomID(ctx.Params().GetUint64Default("id", 0))

		identity := ctx.GetHeader(IDENTITY_HEADER)
		if identity == "" {
			identity = ctx.URLParam("identity")
		}

		if identity == "" || len(identity) > game.MAX_IDENTITY_LEN {
			ctx.StopWithJSON(iris.StatusUnauthorized, dto.ErrorResponse{
				Error: "缺少身份",
				Code:  "UNAUTHENTICATED",
			})
			return
		}

		caller := game.Identity(identity)

		// 先订阅再取快照，快照之后的事件不会丢失
		events, unsubscribe := svc.Subscribe(roomID)
		defer unsubscribe()

		// 升级前确认房间存在
		snapshot, err := svc.RoomInfo(ctx.Request().Context(), roomID)
		if err != nil {
			status := iris.StatusServiceUnavailable
			if game.CodeOf(err) == game.CODE_ROOM_NOT_FOUND {
				status = iris.StatusNotFound
			}

			ctx.StopWithJSON(status, dto.ErrorResponse{
				Error: err.Error(),
				Code:  string(game.CodeOf(err)),
			})
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()

		clientIP := ctx.RemoteAddr()

		conn.SetReadLimit(MAX_MESSAGE_SIZE)
		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		respCh := make(chan game.ResponseWrapper, RESPONSE_BUFFER)
		respCh <- game.WrapResponse(game.RESP_SNAPSHOT, snapshot)

		zap.L().Info(
			"订阅房间事件",
			zap.String("client_ip", clientIP),
			zap.String("identity", identity),
			zap.Uint64("room_id", uint64(roomID)),
		)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		writerExitedCh := make(chan struct{})

		go func() {
			defer close(writerExitedCh)
			// 写协程先退出时关闭连接，让读循环结束
			defer conn.Close()

			writeLoop(conn, clientIP, events, respCh, writeDoneCh)
		}()

		reqCtx := ctx.Request().Context()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			var resp game.ResponseWrapper

			var wrapper game.RequestWrapper
			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Debug(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				resp = game.WrapErrResponse(game.ErrInvalidRequest)
			} else if !appState.Limiter.Allow(identity) {
				resp = game.ResponseWrapper{
					RespType:  game.RESP_ERROR,
					RequestID: wrapper.RequestID,
					ErrMsg:    "请求过于频繁",
					ErrCode:   RATE_LIMITED,
				}
			} else {
				resp = svc.HandleRequest(reqCtx, caller, wrapper)
			}

			// 写协程退出后连接已关闭，下一次读取会失败
			select {
			case respCh <- resp:
			case <-writerExitedCh:
			}
		}

		close(writeDoneCh)
		<-writerExitedCh

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("identity", identity),
			zap.Uint64("room_id", uint64(roomID)),
		)
	}
}

func writeLoop(
	conn *websocket.Conn,
	clientIP string,
	events <-chan game.Event,
	respCh <-chan game.ResponseWrapper,
	doneCh <-chan struct{},
) {
	ticker := time.NewTicker(HEARTBEAT_INTERVAL)
	defer ticker.Stop()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))

		if err := conn.WriteJSON(v); err != nil {
			zap.L().Error(
				"发送消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			return false
		}

		return true
	}

	for {
		select {
		case <-doneCh:
			return

		case <-ticker.C:
			deadline := time.Now().Add(WRITE_TIMEOUT)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				zap.L().Error(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

		case resp := <-respCh:
			if !write(resp) {
				return
			}

		case ev, ok := <-events:
			// 房间被清理或服务关闭
			if !ok {
				zap.L().Info("事件流已关闭", zap.String("client_ip", clientIP))

				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WRITE_TIMEOUT))
				return
			}

			if !write(game.WrapResponse(game.RESP_EVENT, ev)) {
				return
			}
		}
	}
}
