package services

import (
	"errors"
	"serra-http-service/config"
	"serra-http-service/models"
	"serra-http-service/utils"

	"gorm.io/gorm"
)

var (
	// ErrAdminNotFound 管理员不存在
	ErrAdminNotFound = errors.New("管理员不存在")
	// ErrAdminNameExists 用户名已存在
	ErrAdminNameExists = errors.New("用户名已存在")
	// ErrPasswordIncorrect 用户名或密码错误
	ErrPasswordIncorrect = errors.New("用户名或密码错误")
)

// InterfaceAdminService 定义管理员服务接口
type InterfaceAdminService interface {
	GetAllAdmins(page, pageSize int) ([]models.Admin, int64, error)
	GetAdminByID(id uint) (*models.Admin, error)
	CreateAdmin(admin *models.Admin) error
	UpdateAdmin(id uint, updates map[string]interface{}) (*models.Admin, error)
	DeleteAdmin(id uint) error
	ValidateCredentials(username, password string) (*models.Admin, error)
}

// AdminService 提供管理员相关的服务
type AdminService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewAdminService 创建一个新的管理员服务
func NewAdminService(db *gorm.DB, cfg *config.Config) InterfaceAdminService {
	return &AdminService{
		DB:     db,
		Config: cfg,
	}
}

// GetAllAdmins 获取所有管理员，支持分页
func (s *AdminService) GetAllAdmins(page, pageSize int) ([]models.Admin, int64, error) {
	var admins []models.Admin
	var total int64

	// 获取总数
	if err := s.DB.Model(&models.Admin{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	if err := s.DB.Limit(pageSize).Offset(offset).Find(&admins).Error; err != nil {
		return nil, 0, err
	}

	return admins, total, nil
}

// GetAdminByID 根据ID获取管理员
func (s *AdminService) GetAdminByID(id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := s.DB.First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// CreateAdmin 创建新管理员
func (s *AdminService) CreateAdmin(admin *models.Admin) error {
	// 设置密码哈希
	hashedPassword, err := utils.HashPassword(admin.Password)
	if err != nil {
		return errors.New("密码加密失败")
	}
	admin.Password = hashedPassword

	if err := s.DB.Create(admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAdminNameExists
		}
		return err
	}
	return nil
}

// UpdateAdmin 更新管理员信息
func (s *AdminService) UpdateAdmin(id uint, updates map[string]interface{}) (*models.Admin, error) {
	admin, err := s.GetAdminByID(id)
	if err != nil {
		return nil, err
	}

	// 如果更新密码，重新哈希
	if password, ok := updates["password"].(string); ok && password != "" {
		hashedPassword, err := utils.HashPassword(password)
		if err != nil {
			return nil, errors.New("密码加密失败")
		}
		updates["password"] = hashedPassword
	}

	if err := s.DB.Model(admin).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAdminNameExists
		}
		return nil, err
	}

	return s.GetAdminByID(id)
}

// DeleteAdmin 删除管理员
func (s *AdminService) DeleteAdmin(id uint) error {
	admin, err := s.GetAdminByID(id)
	if err != nil {
		return err
	}

	return s.DB.Delete(admin).Error
}

// ValidateCredentials 校验登录用户名和密码
func (s *AdminService) ValidateCredentials(username, password string) (*models.Admin, error) {
	var admin models.Admin
	if err := s.DB.Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在时也执行一次哈希比较，避免用户名枚举
			_ = utils.CheckPasswordHashConstantTime(password, "")
			return nil, ErrPasswordIncorrect
		}
		return nil, err
	}

	if !utils.CheckPasswordHash(password, admin.Password) {
		return nil, ErrPasswordIncorrect
	}

	return &admin, nil
}
