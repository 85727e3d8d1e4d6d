package dto

// 外部预言机提交随机数，CallbackToken 需与配置一致
type FulfillRequest struct {
	RequestID     string `json:"request_id"`
	Value         uint64 `json:"value"`
	CallbackToken string `json:"callback_token"`
}

type FulfillResponse struct {
	RequestID string `json:"request_id"`
	RoomID    uint64 `json:"room_id"`
}

type PendingRequestsResponse struct {
	RequestIDs []string `json:"request_ids"`
}

const (
	COMMITMENT_KIND_GUESS  = "guess"
	COMMITMENT_KIND_SECRET = "secret"
)

// 帮助客户端计算承诺。Salt 为空时由服务端生成，客户端必须自行保存返回的 Salt 用于公开。
// Kind 为 secret 时 Value 是秘密数字，TotalPrediction 被忽略。
type CommitmentRequest struct {
	Kind            string `json:"kind"`
	Identity        string `json:"identity"`
	TotalPrediction uint32 `json:"total_prediction"`
	Value           uint8  `json:"value"`
	Salt            string `json:"salt,omitempty"`
}

type CommitmentResponse struct {
	Commitment string `json:"commitment"`
	Salt       string `json:"salt"`
}
