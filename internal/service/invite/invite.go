package invite

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/google/uuid"
)

const (
	CODE_LENGTH = 8

	// 去掉了容易混淆的 0/O、1/I
	CODE_ALPHABET = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	MAX_ISSUE_ATTEMPTS = 16
)

var ErrCodeSpaceExhausted = errors.New("无法生成唯一的邀请码")

// Registry 维护邀请码与房间 ID 之间的双向映射，只保证在存活房间之间唯一
type Registry struct {
	byCode map[string]uint64
	byRoom map[uint64]string

	// 每次生成调用的随机数来源
	nonce func() []byte
}

func NewRegistry() *Registry {
	return newRegistry(func() []byte {
		id := uuid.New()
		return id[:]
	})
}

func newRegistry(nonce func() []byte) *Registry {
	return &Registry{
		byCode: make(map[string]uint64),
		byRoom: make(map[uint64]string),
		nonce:  nonce,
	}
}

// Issue 为房间生成邀请码。房间已持有邀请码时直接返回原码，保证房间生命周期内稳定。
func (r *Registry) Issue(roomID uint64) (string, error) {
	if code, ok := r.byRoom[roomID]; ok {
		return code, nil
	}

	for attempt := 0; attempt < MAX_ISSUE_ATTEMPTS; attempt++ {
		code := deriveCode(roomID, r.nonce())
		if _, taken := r.byCode[code]; taken {
			continue
		}

		r.byCode[code] = roomID
		r.byRoom[roomID] = code

		return code, nil
	}

	return "", ErrCodeSpaceExhausted
}

func (r *Registry) Resolve(code string) (uint64, bool) {
	roomID, ok := r.byCode[Normalize(code)]
	return roomID, ok
}

func (r *Registry) CodeOf(roomID uint64) (string, bool) {
	code, ok := r.byRoom[roomID]
	return code, ok
}

// Retire 使房间的邀请码失效，之后该码可以被重新分配
func (r *Registry) Retire(roomID uint64) {
	code, ok := r.byRoom[roomID]
	if !ok {
		return
	}

	delete(r.byRoom, roomID)
	delete(r.byCode, code)
}

func (r *Registry) Len() int {
	return len(r.byCode)
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func deriveCode(roomID uint64, nonce []byte) string {
	buf := make([]byte, 0, 8+len(nonce))
	buf = binary.BigEndian.AppendUint64(buf, roomID)
	buf = append(buf, nonce...)

	digest := blake256.Sum256(buf)

	var sb strings.Builder
	sb.Grow(CODE_LENGTH)

	for i := 0; i < CODE_LENGTH; i++ {
		sb.WriteByte(CODE_ALPHABET[int(digest[i])%len(CODE_ALPHABET)])
	}

	return sb.String()
}
