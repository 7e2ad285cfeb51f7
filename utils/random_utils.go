package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomSecret 生成指定字节数的高熵随机密钥，返回十六进制字符串
func RandomSecret(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
