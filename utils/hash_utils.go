package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash 是一个固定的bcrypt哈希（输入为随机串）。
// 校验未知设备时也执行一次完整比较，避免通过响应耗时区分"设备不存在"和"密钥错误"。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword 使用 bcrypt 对密码进行哈希处理
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash 比较密码和哈希值
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPasswordHashConstantTime 比较密码和哈希值；哈希为空时
// 仍对固定哈希执行一次比较以保持耗时一致，并始终返回false
func CheckPasswordHashConstantTime(password, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
