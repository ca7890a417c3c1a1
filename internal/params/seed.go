package params

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
)

// MaxRandomSeed 随机种子的上界（不含）
const MaxRandomSeed int64 = 99999999999

// SeedSource 产生新的随机种子
type SeedSource func() int64

// CryptoSeed 使用 crypto/rand 生成 [0, MaxRandomSeed) 内的种子
func CryptoSeed() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxRandomSeed))
	if err != nil {
		// crypto/rand 在受支持的平台上不会失败
		panic(err)
	}
	return n.Int64()
}

// ResolveSeed 解析种子文本；为空或不是整数时抽取新的随机种子
func ResolveSeed(text string, source SeedSource) int64 {
	if source == nil {
		source = CryptoSeed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return source()
	}
	seed, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return source()
	}
	return seed
}
