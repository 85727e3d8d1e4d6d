package dto

import "time"

// GameResult 是一局结束后持久化的结果，没有猜测时 Winner 等字段为空
type GameResult struct {
	// 写入该结果的服务实例，由存储层填写
	InstanceID      string    `json:"instance_id,omitempty"`
	RoomID          uint64    `json:"room_id"`
	Generation      uint64    `json:"generation"`
	Arbiter         string    `json:"arbiter"`
	Winner          *string   `json:"winner,omitempty"`
	WinType         *string   `json:"win_type,omitempty"`
	ClosestDistance *uint8    `json:"closest_distance,omitempty"`
	Secret          *uint8    `json:"secret,omitempty"`
	TotalGuessCount uint32    `json:"total_guess_count"`
	FinishedAt      time.Time `json:"finished_at"`
}

type HistoryResponse struct {
	Results []GameResult `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
