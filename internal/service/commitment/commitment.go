package commitment

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/crypto/blake256"
)

const SaltSize = 32

// 不同用途的承诺使用不同的域分隔标签，避免猜测承诺被当作秘密承诺使用
var (
	guessTag  = []byte("SecretGame/GuessCommit/v1")
	secretTag = []byte("SecretGame/SecretCommit/v1")
)

type Salt [SaltSize]byte

func NewSalt() (Salt, error) {
	var s Salt
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		return Salt{}, fmt.Errorf("生成盐值失败: %w", err)
	}

	return s, nil
}

// ParseSalt 解析 64 位十六进制字符串形式的盐值
func ParseSalt(s string) (Salt, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Salt{}, fmt.Errorf("盐值不是合法的十六进制: %w", err)
	}

	if len(b) != SaltSize {
		return Salt{}, fmt.Errorf("盐值长度必须为 %d 字节，实际为 %d", SaltSize, len(b))
	}

	var salt Salt
	copy(salt[:], b)

	return salt, nil
}

func (s Salt) String() string {
	return hex.EncodeToString(s[:])
}

func ParseHash(s string) (chainhash.Hash, error) {
	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, fmt.Errorf("承诺哈希长度必须为 %d 个字符", chainhash.MaxHashStringSize)
	}

	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("承诺哈希格式错误: %w", err)
	}

	return *h, nil
}

// Commit 计算玩家对 (totalPrediction, secretGuess) 的承诺。
// 承诺者身份被写入原像，因此其他玩家无法重放同一个承诺。
func Commit(totalPrediction uint32, secretGuess uint8, salt Salt, committer string) chainhash.Hash {
	buf := make([]byte, 0, len(guessTag)+4+1+SaltSize+2+len(committer))
	buf = append(buf, guessTag...)
	buf = binary.BigEndian.AppendUint32(buf, totalPrediction)
	buf = append(buf, secretGuess)
	buf = append(buf, salt[:]...)
	buf = appendIdentity(buf, committer)

	return chainhash.Hash(blake256.Sum256(buf))
}

func Verify(hash chainhash.Hash, totalPrediction uint32, secretGuess uint8, salt Salt, committer string) bool {
	return Commit(totalPrediction, secretGuess, salt, committer) == hash
}

// CommitSecret 计算裁判对房间秘密数字的承诺
func CommitSecret(secret uint8, salt Salt, arbiter string) chainhash.Hash {
	buf := make([]byte, 0, len(secretTag)+1+SaltSize+2+len(arbiter))
	buf = append(buf, secretTag...)
	buf = append(buf, secret)
	buf = append(buf, salt[:]...)
	buf = appendIdentity(buf, arbiter)

	return chainhash.Hash(blake256.Sum256(buf))
}

func VerifySecret(hash chainhash.Hash, secret uint8, salt Salt, arbiter string) bool {
	return CommitSecret(secret, salt, arbiter) == hash
}

// 身份以长度前缀写入，使不同长度的身份不会产生相同的字节串
func appendIdentity(buf []byte, identity string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(identity)))
	return append(buf, identity...)
}
