package services

import (
	"errors"
	"serra-http-service/config"
	"serra-http-service/models"
	"serra-http-service/utils"

	"gorm.io/gorm"
)

// 设备密钥长度（字节），十六进制编码后为32个字符
const secretNumBytes = 16

// ErrCredentialMismatch 设备密钥校验失败
var ErrCredentialMismatch = errors.New("设备密钥校验失败")

// InterfaceCredentialService 定义设备凭证服务接口
type InterfaceCredentialService interface {
	IssueSecret() (plaintext string, hash string, err error)
	RotateSecret(deviceID uint) (string, error)
	VerifySecret(device *models.Device, presented string) bool
}

// CredentialService 负责设备密钥的签发与校验。
// 密钥仅以bcrypt哈希形式落库，明文只在签发时返回一次。
// 注册不会静默覆盖已有密钥，轮换是独立的显式操作，
// 轮换后旧密钥立即失效。
type CredentialService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewCredentialService 创建一个新的凭证服务
func NewCredentialService(db *gorm.DB, cfg *config.Config) InterfaceCredentialService {
	return &CredentialService{
		DB:     db,
		Config: cfg,
	}
}

// 1 IssueSecret 生成高熵随机密钥，返回明文和哈希
func (s *CredentialService) IssueSecret() (string, string, error) {
	plaintext, err := utils.RandomSecret(secretNumBytes)
	if err != nil {
		return "", "", err
	}

	hash, err := utils.HashPassword(plaintext)
	if err != nil {
		return "", "", err
	}

	return plaintext, hash, nil
}

// 2 RotateSecret 为已注册设备签发新密钥，旧密钥失效。
// 新明文只返回这一次。
func (s *CredentialService) RotateSecret(deviceID uint) (string, error) {
	var device models.Device
	if err := s.DB.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDeviceNotFound
		}
		return "", err
	}

	plaintext, hash, err := s.IssueSecret()
	if err != nil {
		return "", err
	}

	if err := s.DB.Model(&device).Update("secret_hash", hash).Error; err != nil {
		return "", err
	}

	return plaintext, nil
}

// 3 VerifySecret 校验设备出示的密钥。
// 设备为空或未持有哈希时仍执行一次完整的bcrypt比较，
// 响应耗时不区分"设备不存在"和"密钥错误"。
func (s *CredentialService) VerifySecret(device *models.Device, presented string) bool {
	if device == nil {
		return utils.CheckPasswordHashConstantTime(presented, "")
	}
	return utils.CheckPasswordHashConstantTime(presented, device.SecretHash)
}
